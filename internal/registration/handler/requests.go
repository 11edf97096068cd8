package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"prato/internal/registration/models"
	dErrors "prato/pkg/domain-errors"
)

// Request decoding and the coarse shape checks that belong at the transport
// edge. Field-level business validation lives in the service.

type createSessionRequest struct {
	RegistrationType models.RegistrationType `json:"registration_type"`
}

type step1Request struct {
	SessionID string `json:"session_id"`
	models.Step1Data
}

type step2Request struct {
	SessionID string `json:"session_id"`
	models.Step2Data
}

func decodeCreateSession(r *http.Request) (*createSessionRequest, error) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "invalid request body")
	}
	req.RegistrationType = models.RegistrationType(strings.ToUpper(string(req.RegistrationType)))
	return &req, nil
}

func decodeStep1(r *http.Request) (*step1Request, error) {
	var req step1Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "invalid request body")
	}
	if err := checkSessionID(req.SessionID); err != nil {
		return nil, err
	}
	return &req, nil
}

func decodeStep2(r *http.Request) (*step2Request, error) {
	var req step2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "invalid request body")
	}
	if err := checkSessionID(req.SessionID); err != nil {
		return nil, err
	}
	return &req, nil
}

func sessionIDParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "sessionID")
	if err := checkSessionID(id); err != nil {
		return "", err
	}
	return id, nil
}

func checkSessionID(id string) error {
	if !govalidator.IsUUID(id) {
		return dErrors.New(dErrors.CodeInvalidArgument, "session_id must be a UUID")
	}
	return nil
}

func documentParams(r *http.Request) (models.RegistrationType, string, error) {
	docType := models.RegistrationType(strings.ToUpper(chi.URLParam(r, "docType")))
	if !docType.Valid() {
		return "", "", dErrors.New(dErrors.CodeInvalidArgument, "document type must be cnpj or cpf")
	}

	document := chi.URLParam(r, "document")
	if !govalidator.StringLength(document, "1", "32") {
		return "", "", dErrors.New(dErrors.CodeInvalidArgument, "document is required")
	}
	return docType, document, nil
}

func cepParam(r *http.Request) (string, error) {
	cep := chi.URLParam(r, "cep")
	if !govalidator.StringLength(cep, "1", "16") {
		return "", dErrors.New(dErrors.CodeInvalidArgument, "cep is required")
	}
	return cep, nil
}
