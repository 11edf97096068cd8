// Package audit publishes registration lifecycle events. The stream feeds
// compliance reporting; integrity anomalies also land here so they can be
// alerted on independently of request logs.
package audit

import "time"

// Kind classifies an audit event.
type Kind string

const (
	KindSessionCreated        Kind = "session.created"
	KindRegistrationCompleted Kind = "registration.completed"
	KindSessionAnomaly        Kind = "session.anomaly"
)

// Event is one audit record. Document numbers are masked to their last four
// digits before leaving the service.
type Event struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"kind"`
	SessionID        string    `json:"session_id"`
	RegistrationType string    `json:"registration_type,omitempty"`
	DocumentSuffix   string    `json:"document_suffix,omitempty"`
	RegistrationID   string    `json:"registration_id,omitempty"`
	Detail           string    `json:"detail,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// MaskDocument reduces a normalized document to its last four digits.
func MaskDocument(document string) string {
	if len(document) <= 4 {
		return document
	}
	return document[len(document)-4:]
}
