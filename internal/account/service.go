package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	regmodels "prato/internal/registration/models"
)

// Provisioner turns finalized registrations into login accounts, mirroring
// the record-keeping side of onboarding: an organization plus an admin user
// for companies, a customer user (and optionally an organization) for
// individuals.
type Provisioner struct {
	store  Store
	logger *slog.Logger
}

func NewProvisioner(store Store, logger *slog.Logger) *Provisioner {
	return &Provisioner{store: store, logger: logger}
}

// ProvisionFromRecord creates the accounts for a finalized registration.
// Errors are returned so the caller can log them; callers must not fail the
// registration on a provisioning error.
func (p *Provisioner) ProvisionFromRecord(ctx context.Context, record *regmodels.Record) error {
	if record.Type == regmodels.TypeCNPJ {
		return p.provisionCNPJ(ctx, record)
	}
	return p.provisionCPF(ctx, record)
}

func (p *Provisioner) provisionCNPJ(ctx context.Context, record *regmodels.Record) error {
	now := time.Now()
	org := &Organization{
		ID:   uuid.NewString(),
		CNPJ: record.Document,
		Name: record.Step1.RazaoSocial,
		Address: fmt.Sprintf("%s, %s, %s-%s",
			record.Address.Endereco, record.Address.Bairro, record.Address.Cidade, record.Address.Estado),
		Email:          record.Step1.Email,
		RegistrationID: record.ID,
		CreatedAt:      now,
	}
	if err := p.store.SaveOrganization(ctx, org); err != nil {
		return fmt.Errorf("provision organization: %w", err)
	}

	hashed, err := tempPasswordHash()
	if err != nil {
		return err
	}
	first, last := splitName(record.Step1.SeuNome)
	user := &User{
		ID:               uuid.NewString(),
		Username:         record.Document,
		Email:            record.Step1.Email,
		HashedPassword:   hashed,
		OrganizationID:   org.ID,
		Role:             RoleAdmin,
		FirstName:        first,
		LastName:         last,
		RegistrationType: string(regmodels.TypeCNPJ),
		CreatedAt:        now,
	}
	if err := p.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("provision admin user: %w", err)
	}

	p.logger.InfoContext(ctx, "provisioned company account",
		"organization_id", org.ID, "registration_id", record.ID)
	return nil
}

func (p *Provisioner) provisionCPF(ctx context.Context, record *regmodels.Record) error {
	now := time.Now()

	var orgID string
	// A business-flavored profile with a named business gets an organization
	// shell even though no CNPJ exists yet.
	if record.Step1.PerfilCompra.RequiresBusinessName() && record.Step1.QualNegocioCPF != "" {
		org := &Organization{
			ID:             uuid.NewString(),
			Name:           record.Step1.QualNegocioCPF,
			Email:          record.Step1.Email,
			RegistrationID: record.ID,
			CreatedAt:      now,
		}
		if err := p.store.SaveOrganization(ctx, org); err != nil {
			return fmt.Errorf("provision organization: %w", err)
		}
		orgID = org.ID
	}

	hashed, err := tempPasswordHash()
	if err != nil {
		return err
	}
	first, last := splitName(record.Step1.NomeCompleto)
	user := &User{
		ID:               uuid.NewString(),
		Username:         record.Document,
		Email:            record.Step1.Email,
		HashedPassword:   hashed,
		OrganizationID:   orgID,
		Role:             RoleCustomer,
		FirstName:        first,
		LastName:         last,
		RegistrationType: string(regmodels.TypeCPF),
		CreatedAt:        now,
	}
	if err := p.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("provision customer user: %w", err)
	}

	p.logger.InfoContext(ctx, "provisioned customer account",
		"registration_id", record.ID, "has_organization", orgID != "")
	return nil
}

// tempPasswordHash generates an unguessable placeholder credential. The user
// sets a real password on first login.
func tempPasswordHash() (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash temp password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword compares a candidate password against a stored bcrypt hash.
func VerifyPassword(hashed, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(candidate)) == nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
