package service

import (
	"time"

	"prato/internal/registration/models"
	"prato/pkg/brdoc"
	dErrors "prato/pkg/domain-errors"
)

// fieldErrors accumulates per-field validation messages and remembers the
// most specific error code seen, so one response can report every problem.
type fieldErrors struct {
	fields map[string]string
	code   dErrors.Code
}

func newFieldErrors() *fieldErrors {
	return &fieldErrors{fields: make(map[string]string)}
}

// code precedence: a bad document beats a bad email beats a missing field
// beats a generic invalid value.
func codeRank(c dErrors.Code) int {
	switch c {
	case dErrors.CodeDocumentInvalid:
		return 4
	case dErrors.CodeEmailInvalid:
		return 3
	case dErrors.CodeFieldMissing:
		return 2
	case dErrors.CodeInvalidArgument:
		return 1
	}
	return 0
}

func (f *fieldErrors) add(code dErrors.Code, field, message string) {
	if _, exists := f.fields[field]; !exists {
		f.fields[field] = message
	}
	if codeRank(code) > codeRank(f.code) {
		f.code = code
	}
}

func (f *fieldErrors) missing(field string) {
	f.add(dErrors.CodeFieldMissing, field, "field is required")
}

func (f *fieldErrors) err(message string) error {
	if len(f.fields) == 0 {
		return nil
	}
	return dErrors.New(f.code, message).WithFields(f.fields)
}

// normalizeStep1 canonicalizes step-1 input in place: document and phone
// fields are reduced to digits, and the conditional business-name field is
// cleared when the purchase profile does not call for it.
func normalizeStep1(t models.RegistrationType, d *models.Step1Data) {
	d.Celular = brdoc.NormalizeDigits(d.Celular)
	if t == models.TypeCNPJ {
		d.CNPJ = brdoc.NormalizeDigits(d.CNPJ)
		return
	}
	d.CPF = brdoc.NormalizeDigits(d.CPF)
	if !d.PerfilCompra.RequiresBusinessName() {
		d.QualNegocioCPF = ""
	}
}

func validateStep1(t models.RegistrationType, d *models.Step1Data) error {
	if t == models.TypeCNPJ {
		return validateStep1CNPJ(d)
	}
	return validateStep1CPF(d)
}

func validateStep1CNPJ(d *models.Step1Data) error {
	fe := newFieldErrors()

	switch {
	case d.QualSeuNegocio == "":
		fe.missing("qual_seu_negocio")
	case !models.BusinessCategories[d.QualSeuNegocio]:
		fe.add(dErrors.CodeInvalidArgument, "qual_seu_negocio", "unknown business category")
	}

	switch {
	case d.CNPJ == "":
		fe.missing("cnpj")
	case !brdoc.ValidateCNPJ(d.CNPJ):
		fe.add(dErrors.CodeDocumentInvalid, "cnpj", "CNPJ check digits failed")
	}

	if d.RazaoSocial == "" {
		fe.missing("razao_social")
	}
	if d.SeuNome == "" {
		fe.missing("seu_nome")
	}
	switch {
	case d.SuaFuncao == "":
		fe.missing("sua_funcao")
	case !models.ContactRoles[d.SuaFuncao]:
		fe.add(dErrors.CodeInvalidArgument, "sua_funcao", "unknown contact role")
	}

	validateShared(fe, d)
	return fe.err("step 1 validation failed")
}

func validateStep1CPF(d *models.Step1Data) error {
	fe := newFieldErrors()

	switch {
	case d.PerfilCompra == "":
		fe.missing("perfil_compra")
	case !d.PerfilCompra.Valid():
		fe.add(dErrors.CodeInvalidArgument, "perfil_compra", "must be casa, negocio or ambos")
	case d.PerfilCompra.RequiresBusinessName() && d.QualNegocioCPF == "":
		fe.missing("qual_negocio_cpf")
	}

	switch {
	case d.CPF == "":
		fe.missing("cpf")
	case !brdoc.ValidateCPF(d.CPF):
		fe.add(dErrors.CodeDocumentInvalid, "cpf", "CPF check digits failed")
	}

	if d.NomeCompleto == "" {
		fe.missing("nome_completo")
	}
	switch {
	case d.Genero == "":
		fe.missing("genero")
	case !models.Genders[d.Genero]:
		fe.add(dErrors.CodeInvalidArgument, "genero", "unknown option")
	}

	validateShared(fe, d)
	return fe.err("step 1 validation failed")
}

func validateShared(fe *fieldErrors, d *models.Step1Data) {
	switch {
	case d.Email == "":
		fe.missing("email")
	case !brdoc.ValidateEmail(d.Email):
		fe.add(dErrors.CodeEmailInvalid, "email", "malformed email address")
	}

	switch n := len(d.Celular); {
	case n == 0:
		fe.missing("celular")
	case n < 10 || n > 11:
		fe.add(dErrors.CodeInvalidArgument, "celular", "expected 10 or 11 digits")
	}

	if !d.TermsAccepted {
		fe.add(dErrors.CodeFieldMissing, "terms_accepted", "terms must be accepted")
	}
}

func validateStep2(t models.RegistrationType, d *models.Step2Data) error {
	fe := newFieldErrors()

	d.CEP = brdoc.NormalizeDigits(d.CEP)
	switch {
	case d.CEP == "":
		fe.missing("cep")
	case len(d.CEP) != 8:
		fe.add(dErrors.CodeInvalidArgument, "cep", "expected 8 digits")
	}

	if d.Endereco == "" {
		fe.missing("endereco")
	}
	if d.Bairro == "" {
		fe.missing("bairro")
	}
	if d.Cidade == "" {
		fe.missing("cidade")
	}
	switch {
	case d.Estado == "":
		fe.missing("estado")
	case !models.StateCodes[d.Estado]:
		fe.add(dErrors.CodeInvalidArgument, "estado", "unknown state code")
	}

	if t == models.TypeCPF {
		switch {
		case d.DataNascimento == "":
			fe.missing("data_nascimento")
		default:
			if born, err := time.Parse("2006-01-02", d.DataNascimento); err != nil {
				fe.add(dErrors.CodeInvalidArgument, "data_nascimento", "expected YYYY-MM-DD")
			} else if born.After(time.Now()) {
				fe.add(dErrors.CodeInvalidArgument, "data_nascimento", "must be in the past")
			}
		}
	}

	if d.CaptchaToken == "" {
		fe.missing("recaptcha_token")
	}

	return fe.err("step 2 validation failed")
}
