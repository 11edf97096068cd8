// Package account provisions login accounts and organizations from finalized
// registrations. Provisioning runs after the registration record commits and
// is best-effort: a failure is logged, never propagated into the registration
// result.
package account

import "time"

// Role values assigned at provisioning time.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Organization represents a company derived from a CNPJ registration, or from
// a CPF registration with a business purchase profile.
type Organization struct {
	ID             string    `json:"id"`
	CNPJ           string    `json:"cnpj,omitempty"` // normalized digits; empty for CPF-derived orgs
	Name           string    `json:"name"`
	Address        string    `json:"address,omitempty"`
	Email          string    `json:"email"`
	RegistrationID string    `json:"registration_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// User is a provisioned login identity. Username is the normalized document
// number. HashedPassword holds a bcrypt hash of a generated temporary secret;
// the real password is set on first login.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	HashedPassword   string    `json:"-"`
	OrganizationID   string    `json:"organization_id,omitempty"`
	Role             string    `json:"role"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	RegistrationType string    `json:"registration_type"`
	CreatedAt        time.Time `json:"created_at"`
}
