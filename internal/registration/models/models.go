package models

import (
	"time"
)

// RegistrationType discriminates the two registration flows.
type RegistrationType string

const (
	TypeCNPJ RegistrationType = "CNPJ"
	TypeCPF  RegistrationType = "CPF"
)

// Valid reports whether t is one of the two supported flows.
func (t RegistrationType) Valid() bool {
	return t == TypeCNPJ || t == TypeCPF
}

// Session steps. A session starts at step 1 and only ever moves forward.
const (
	StepOne = 1
	StepTwo = 2
)

// Session tracks one in-flight multi-step registration attempt.
//
// Invariants:
//   - Type is immutable after creation
//   - Step is monotonically non-decreasing
//   - Step1 must be non-nil before finalization is attempted
//   - Completed flips to true exactly once, at step-2 finalization
//
// Expiry is not modeled here; the session store owns retention via TTL.
type Session struct {
	ID          string           `json:"session_id"`
	Type        RegistrationType `json:"registration_type"`
	Step        int              `json:"step"`
	Completed   bool             `json:"is_completed"`
	Step1       *Step1Data       `json:"step1_data,omitempty"`
	Device      string           `json:"device,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedID string           `json:"registration_id,omitempty"`
}

// AwaitingStep1 reports whether the session still accepts step-1 submissions.
func (s *Session) AwaitingStep1() bool {
	return !s.Completed && s.Step1 == nil
}

// AwaitingStep2 reports whether step 1 succeeded and finalization is pending.
func (s *Session) AwaitingStep2() bool {
	return !s.Completed && s.Step1 != nil
}

// Step1Data is the validated step-1 field set. CNPJ and CPF flows share one
// struct; per-type required fields are enforced by the service's rule tables.
// Field names follow the public form contract.
type Step1Data struct {
	// CNPJ flow
	QualSeuNegocio string `json:"qual_seu_negocio,omitempty"`
	CNPJ           string `json:"cnpj,omitempty"`
	RazaoSocial    string `json:"razao_social,omitempty"`
	SeuNome        string `json:"seu_nome,omitempty"`
	SuaFuncao      string `json:"sua_funcao,omitempty"`

	// CPF flow
	PerfilCompra   PurchaseProfile `json:"perfil_compra,omitempty"`
	QualNegocioCPF string          `json:"qual_negocio_cpf,omitempty"`
	CPF            string          `json:"cpf,omitempty"`
	NomeCompleto   string          `json:"nome_completo,omitempty"`
	Genero         string          `json:"genero,omitempty"`

	// Shared
	Email          string `json:"email"`
	Celular        string `json:"celular"`
	TermsAccepted  bool   `json:"terms_accepted"`
	MarketingOptIn bool   `json:"marketing_opt_in,omitempty"`
}

// Document returns the normalized-form document for the given type.
func (d *Step1Data) Document(t RegistrationType) string {
	if t == TypeCNPJ {
		return d.CNPJ
	}
	return d.CPF
}

// Step2Data is the step-2 field set: address, consent token, and for CPF the
// birth date.
type Step2Data struct {
	Address
	DataNascimento string `json:"data_nascimento,omitempty"` // YYYY-MM-DD, CPF only
	CaptchaToken   string `json:"recaptcha_token"`
}

// Address is a value object embedded in finalized records; it has no
// independent lifecycle.
type Address struct {
	CEP      string `json:"cep"`
	Endereco string `json:"endereco"`
	Bairro   string `json:"bairro"`
	Cidade   string `json:"cidade"`
	Estado   string `json:"estado"`
}

// Record is the finalized, validated registration for one company or one
// individual. The document number is globally unique across completed records
// of its type.
type Record struct {
	ID        string           `json:"id"`
	Type      RegistrationType `json:"registration_type"`
	Document  string           `json:"document"` // normalized digits
	Step1     Step1Data        `json:"step1"`
	Address   Address          `json:"address"`
	BirthDate string           `json:"data_nascimento,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// PurchaseProfile is the CPF flow's purchase-profile discriminant.
type PurchaseProfile string

const (
	ProfileCasa    PurchaseProfile = "casa"
	ProfileNegocio PurchaseProfile = "negocio"
	ProfileAmbos   PurchaseProfile = "ambos"
)

func (p PurchaseProfile) Valid() bool {
	return p == ProfileCasa || p == ProfileNegocio || p == ProfileAmbos
}

// RequiresBusinessName reports whether the conditional business-name field is
// mandatory for this profile. "ambos" triggers the field as well as "negocio".
func (p PurchaseProfile) RequiresBusinessName() bool {
	return p == ProfileNegocio || p == ProfileAmbos
}

// SubmitResult is returned by step submissions; NextStep guides the client
// form, RegistrationID is set on finalization only.
type SubmitResult struct {
	NextStep       int    `json:"next_step,omitempty"`
	RegistrationID string `json:"registration_id,omitempty"`
	Completed      bool   `json:"completed"`
}

// Availability is the non-binding answer to a live document pre-check. A
// positive result does not reserve the document.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Stats aggregates dashboard counts across completed registrations.
type Stats struct {
	CNPJRegistrations int `json:"cnpj_registrations"`
	CPFRegistrations  int `json:"cpf_registrations"`
	Organizations     int `json:"organizations"`
	Users             int `json:"users"`
}
