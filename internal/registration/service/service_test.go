package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"prato/internal/account"
	"prato/internal/captcha"
	"prato/internal/registration/models"
	"prato/internal/registration/store"
	dErrors "prato/pkg/domain-errors"
	"prato/pkg/platform/sentinel"
)

const goodCaptchaToken = "token-long-enough-to-pass"

type ServiceSuite struct {
	suite.Suite
	sessions *store.InMemorySessionStore
	records  *store.InMemoryRecordStore
	accounts *account.InMemoryStore
	svc      *Service
}

func (s *ServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.sessions = store.NewInMemorySessionStore()
	s.records = store.NewInMemoryRecordStore()
	s.accounts = account.NewInMemoryStore()
	s.svc = New(
		s.sessions,
		s.records,
		NewShardedTx(),
		captcha.ThresholdVerifier{},
		nil,
		logger,
		WithProvisioner(account.NewProvisioner(s.accounts, logger)),
		WithAccountCounter(s.accounts),
	)
}

func validCNPJStep1() *models.Step1Data {
	return &models.Step1Data{
		QualSeuNegocio: "Restaurante",
		CNPJ:           "11.222.333/0001-81",
		RazaoSocial:    "Restaurante Bom Prato LTDA",
		SeuNome:        "Maria da Silva",
		SuaFuncao:      "Proprietário",
		Email:          "maria@bomprato.com.br",
		Celular:        "(11) 99999-8888",
		TermsAccepted:  true,
	}
}

func validCPFStep1() *models.Step1Data {
	return &models.Step1Data{
		PerfilCompra:  models.ProfileCasa,
		CPF:           "111.444.777-35",
		NomeCompleto:  "João Souza",
		Genero:        "masculino",
		Email:         "joao@example.com",
		Celular:       "11988887777",
		TermsAccepted: true,
	}
}

func validStep2(t models.RegistrationType) *models.Step2Data {
	d := &models.Step2Data{
		Address: models.Address{
			CEP:      "01310-100",
			Endereco: "Avenida Paulista, 1000",
			Bairro:   "Bela Vista",
			Cidade:   "São Paulo",
			Estado:   "SP",
		},
		CaptchaToken: goodCaptchaToken,
	}
	if t == models.TypeCPF {
		d.DataNascimento = "1990-05-10"
	}
	return d
}

func (s *ServiceSuite) startSession(t models.RegistrationType) *models.Session {
	session, err := s.svc.CreateSession(context.Background(), t, "Mozilla/5.0")
	s.Require().NoError(err)
	return session
}

func (s *ServiceSuite) completeRegistration(t models.RegistrationType, step1 *models.Step1Data) string {
	ctx := context.Background()
	session := s.startSession(t)
	_, err := s.svc.SubmitStep1(ctx, session.ID, t, step1)
	s.Require().NoError(err)
	res, err := s.svc.SubmitStep2(ctx, session.ID, t, validStep2(t))
	s.Require().NoError(err)
	s.Require().True(res.Completed)
	return session.ID
}

func (s *ServiceSuite) TestCreateSessionRejectsUnknownType() {
	_, err := s.svc.CreateSession(context.Background(), "RG", "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
}

func (s *ServiceSuite) TestCreateAndGetSession() {
	session := s.startSession(models.TypeCNPJ)
	s.Equal(models.StepOne, session.Step)
	s.False(session.Completed)
	s.NotEmpty(session.Device)

	got, err := s.svc.GetSession(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Equal(session.ID, got.ID)
	s.Equal(models.TypeCNPJ, got.Type)
}

func (s *ServiceSuite) TestGetSessionNotFound() {
	_, err := s.svc.GetSession(context.Background(), "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeSessionNotFound))
}

func (s *ServiceSuite) TestStep1AdvancesToStep2() {
	session := s.startSession(models.TypeCNPJ)
	res, err := s.svc.SubmitStep1(context.Background(), session.ID, models.TypeCNPJ, validCNPJStep1())
	s.Require().NoError(err)
	s.Equal(models.StepTwo, res.NextStep)
	s.False(res.Completed)

	got, err := s.svc.GetSession(context.Background(), session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.Step1)
	// document was normalized to bare digits
	s.Equal("11222333000181", got.Step1.CNPJ)
	s.Equal("11999998888", got.Step1.Celular)
}

func (s *ServiceSuite) TestStep1ResubmitOverwrites() {
	ctx := context.Background()
	session := s.startSession(models.TypeCNPJ)

	_, err := s.svc.SubmitStep1(ctx, session.ID, models.TypeCNPJ, validCNPJStep1())
	s.Require().NoError(err)

	second := validCNPJStep1()
	second.CNPJ = "11.444.777/0001-61"
	second.RazaoSocial = "Padaria Nova LTDA"
	res, err := s.svc.SubmitStep1(ctx, session.ID, models.TypeCNPJ, second)
	s.Require().NoError(err)
	s.Equal(models.StepTwo, res.NextStep)

	got, err := s.svc.GetSession(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal("11444777000161", got.Step1.CNPJ)
	s.Equal("Padaria Nova LTDA", got.Step1.RazaoSocial)
}

func (s *ServiceSuite) TestStep1WrongFlowRejected() {
	session := s.startSession(models.TypeCNPJ)
	_, err := s.svc.SubmitStep1(context.Background(), session.ID, models.TypeCPF, validCPFStep1())
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
}

func (s *ServiceSuite) TestStep1InvalidCheckDigits() {
	session := s.startSession(models.TypeCPF)
	data := validCPFStep1()
	data.CPF = "123.456.789-00"
	_, err := s.svc.SubmitStep1(context.Background(), session.ID, models.TypeCPF, data)
	s.True(dErrors.HasCode(err, dErrors.CodeDocumentInvalid))
	s.Contains(dErrors.FieldsOf(err), "cpf")
}

func (s *ServiceSuite) TestStep1BusinessProfileRequiresBusinessName() {
	session := s.startSession(models.TypeCPF)
	data := validCPFStep1()
	data.PerfilCompra = models.ProfileNegocio
	_, err := s.svc.SubmitStep1(context.Background(), session.ID, models.TypeCPF, data)
	s.True(dErrors.HasCode(err, dErrors.CodeFieldMissing))
	s.Contains(dErrors.FieldsOf(err), "qual_negocio_cpf")
}

func (s *ServiceSuite) TestStep1HomeProfileClearsBusinessName() {
	ctx := context.Background()
	session := s.startSession(models.TypeCPF)
	data := validCPFStep1()
	data.QualNegocioCPF = "leftover from an earlier profile choice"
	_, err := s.svc.SubmitStep1(ctx, session.ID, models.TypeCPF, data)
	s.Require().NoError(err)

	got, err := s.svc.GetSession(ctx, session.ID)
	s.Require().NoError(err)
	s.Empty(got.Step1.QualNegocioCPF)
}

func (s *ServiceSuite) TestStep1CollectsAllFieldErrors() {
	session := s.startSession(models.TypeCNPJ)
	data := &models.Step1Data{CNPJ: "11222333000181"}
	_, err := s.svc.SubmitStep1(context.Background(), session.ID, models.TypeCNPJ, data)
	s.Require().Error(err)
	fields := dErrors.FieldsOf(err)
	s.Contains(fields, "qual_seu_negocio")
	s.Contains(fields, "razao_social")
	s.Contains(fields, "email")
	s.Contains(fields, "terms_accepted")
}

func (s *ServiceSuite) TestStep1DocumentAlreadyRegistered() {
	s.completeRegistration(models.TypeCNPJ, validCNPJStep1())

	session := s.startSession(models.TypeCNPJ)
	_, err := s.svc.SubmitStep1(context.Background(), session.ID, models.TypeCNPJ, validCNPJStep1())
	s.True(dErrors.HasCode(err, dErrors.CodeDocumentAlreadyRegistered))
}

func (s *ServiceSuite) TestStep2WithoutStep1Rejected() {
	session := s.startSession(models.TypeCNPJ)
	_, err := s.svc.SubmitStep2(context.Background(), session.ID, models.TypeCNPJ, validStep2(models.TypeCNPJ))
	s.True(dErrors.HasCode(err, dErrors.CodeSessionStateInvalid))
}

func (s *ServiceSuite) TestStep2CompletesCNPJRegistration() {
	ctx := context.Background()
	session := s.startSession(models.TypeCNPJ)
	_, err := s.svc.SubmitStep1(ctx, session.ID, models.TypeCNPJ, validCNPJStep1())
	s.Require().NoError(err)

	res, err := s.svc.SubmitStep2(ctx, session.ID, models.TypeCNPJ, validStep2(models.TypeCNPJ))
	s.Require().NoError(err)
	s.True(res.Completed)
	s.NotEmpty(res.RegistrationID)

	got, err := s.svc.GetSession(ctx, session.ID)
	s.Require().NoError(err)
	s.True(got.Completed)
	s.Equal(res.RegistrationID, got.CompletedID)

	record, err := s.records.FindCompletedByDocument(ctx, "11222333000181", models.TypeCNPJ)
	s.Require().NoError(err)
	s.Equal(res.RegistrationID, record.ID)
	s.Equal("São Paulo", record.Address.Cidade)

	// provisioning created the admin account
	user, err := s.accounts.FindUserByUsername(ctx, "11222333000181")
	s.Require().NoError(err)
	s.Equal(account.RoleAdmin, user.Role)
}

func (s *ServiceSuite) TestStep2CompletesCPFRegistration() {
	ctx := context.Background()
	session := s.startSession(models.TypeCPF)
	_, err := s.svc.SubmitStep1(ctx, session.ID, models.TypeCPF, validCPFStep1())
	s.Require().NoError(err)

	res, err := s.svc.SubmitStep2(ctx, session.ID, models.TypeCPF, validStep2(models.TypeCPF))
	s.Require().NoError(err)
	s.True(res.Completed)

	record, err := s.records.FindCompletedByDocument(ctx, "11144477735", models.TypeCPF)
	s.Require().NoError(err)
	s.Equal("1990-05-10", record.BirthDate)
}

func (s *ServiceSuite) TestStep2RequiresBirthDateForCPF() {
	ctx := context.Background()
	session := s.startSession(models.TypeCPF)
	_, err := s.svc.SubmitStep1(ctx, session.ID, models.TypeCPF, validCPFStep1())
	s.Require().NoError(err)

	data := validStep2(models.TypeCPF)
	data.DataNascimento = ""
	_, err = s.svc.SubmitStep2(ctx, session.ID, models.TypeCPF, data)
	s.True(dErrors.HasCode(err, dErrors.CodeFieldMissing))
	s.Contains(dErrors.FieldsOf(err), "data_nascimento")
}

func (s *ServiceSuite) TestStep2RejectsUnknownState() {
	ctx := context.Background()
	session := s.startSession(models.TypeCNPJ)
	_, err := s.svc.SubmitStep1(ctx, session.ID, models.TypeCNPJ, validCNPJStep1())
	s.Require().NoError(err)

	data := validStep2(models.TypeCNPJ)
	data.Estado = "XX"
	_, err = s.svc.SubmitStep2(ctx, session.ID, models.TypeCNPJ, data)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	s.Contains(dErrors.FieldsOf(err), "estado")
}

func (s *ServiceSuite) TestStep2BotCheckFailure() {
	ctx := context.Background()
	session := s.startSession(models.TypeCNPJ)
	_, err := s.svc.SubmitStep1(ctx, session.ID, models.TypeCNPJ, validCNPJStep1())
	s.Require().NoError(err)

	data := validStep2(models.TypeCNPJ)
	data.CaptchaToken = "short"
	_, err = s.svc.SubmitStep2(ctx, session.ID, models.TypeCNPJ, data)
	s.True(dErrors.HasCode(err, dErrors.CodeBotCheckFailed))

	// failed bot check must not finalize anything
	got, err := s.svc.GetSession(ctx, session.ID)
	s.Require().NoError(err)
	s.False(got.Completed)
}

// completionFailingSessionStore accepts every write except the one that marks
// the session completed.
type completionFailingSessionStore struct {
	store.SessionStore
}

func (f *completionFailingSessionStore) Save(ctx context.Context, session *models.Session) error {
	if session.Completed {
		return sentinel.ErrUnavailable
	}
	return f.SessionStore.Save(ctx, session)
}

func (s *ServiceSuite) TestStep2SessionWriteFailureLeavesNoRecord() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := &completionFailingSessionStore{SessionStore: store.NewInMemorySessionStore()}
	records := store.NewInMemoryRecordStore()
	svc := New(sessions, records, NewShardedTx(), captcha.ThresholdVerifier{}, nil, logger)

	session, err := svc.CreateSession(ctx, models.TypeCNPJ, "Mozilla/5.0")
	s.Require().NoError(err)
	_, err = svc.SubmitStep1(ctx, session.ID, models.TypeCNPJ, validCNPJStep1())
	s.Require().NoError(err)

	_, err = svc.SubmitStep2(ctx, session.ID, models.TypeCNPJ, validStep2(models.TypeCNPJ))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// record and session completion move together: neither side lands
	_, err = records.FindCompletedByDocument(ctx, "11222333000181", models.TypeCNPJ)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	got, err := svc.GetSession(ctx, session.ID)
	s.Require().NoError(err)
	s.False(got.Completed)
	s.Empty(got.CompletedID)
}

func (s *ServiceSuite) TestStep2AfterCompletionRejected() {
	sessionID := s.completeRegistration(models.TypeCNPJ, validCNPJStep1())
	_, err := s.svc.SubmitStep2(context.Background(), sessionID, models.TypeCNPJ, validStep2(models.TypeCNPJ))
	s.True(dErrors.HasCode(err, dErrors.CodeSessionStateInvalid))
}

func (s *ServiceSuite) TestConcurrentFinalizeExactlyOneWins() {
	ctx := context.Background()

	const attempts = 8
	sessionIDs := make([]string, attempts)
	for i := range sessionIDs {
		session := s.startSession(models.TypeCNPJ)
		_, err := s.svc.SubmitStep1(ctx, session.ID, models.TypeCNPJ, validCNPJStep1())
		s.Require().NoError(err)
		sessionIDs[i] = session.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i, id := range sessionIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = s.svc.SubmitStep2(ctx, id, models.TypeCNPJ, validStep2(models.TypeCNPJ))
		}(i, id)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case dErrors.HasCode(err, dErrors.CodeDocumentAlreadyRegistered):
			conflicts++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, wins)
	s.Equal(attempts-1, conflicts)

	n, err := s.records.CountByType(ctx, models.TypeCNPJ)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestSameDocumentAllowedAcrossTypes() {
	// a CPF and a CNPJ can never collide on digits, but the uniqueness gate
	// is scoped per type regardless
	s.completeRegistration(models.TypeCNPJ, validCNPJStep1())
	s.completeRegistration(models.TypeCPF, validCPFStep1())

	cnpj, err := s.records.CountByType(context.Background(), models.TypeCNPJ)
	s.Require().NoError(err)
	cpf, err := s.records.CountByType(context.Background(), models.TypeCPF)
	s.Require().NoError(err)
	s.Equal(1, cnpj)
	s.Equal(1, cpf)
}

func (s *ServiceSuite) TestCheckDocumentAvailability() {
	ctx := context.Background()

	avail, err := s.svc.CheckDocumentAvailability(ctx, models.TypeCNPJ, "11.222.333/0001-81")
	s.Require().NoError(err)
	s.True(avail.Available)

	avail, err = s.svc.CheckDocumentAvailability(ctx, models.TypeCPF, "123.456.789-00")
	s.Require().NoError(err)
	s.False(avail.Available)
	s.Equal("invalid_document", avail.Reason)

	s.completeRegistration(models.TypeCNPJ, validCNPJStep1())
	avail, err = s.svc.CheckDocumentAvailability(ctx, models.TypeCNPJ, "11222333000181")
	s.Require().NoError(err)
	s.False(avail.Available)
	s.Equal("already_registered", avail.Reason)
}

func (s *ServiceSuite) TestStats() {
	s.completeRegistration(models.TypeCNPJ, validCNPJStep1())
	s.completeRegistration(models.TypeCPF, validCPFStep1())

	stats, err := s.svc.Stats(context.Background())
	s.Require().NoError(err)
	s.Equal(1, stats.CNPJRegistrations)
	s.Equal(1, stats.CPFRegistrations)
	s.Equal(2, stats.Users)
	s.Equal(1, stats.Organizations)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
