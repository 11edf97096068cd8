//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"prato/internal/registration/models"
	"prato/internal/registration/store/postgres"
	"prato/pkg/platform/sentinel"
	"prato/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.Pool)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.pg.Pool.Close()
	_ = s.pg.Container.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.pg.Pool.Exec(ctx, "TRUNCATE registration_sessions, registrations")
	s.Require().NoError(err)
}

func testRecord(document string) *models.Record {
	return &models.Record{
		ID:       uuid.NewString(),
		Type:     models.TypeCNPJ,
		Document: document,
		Step1: models.Step1Data{
			QualSeuNegocio: "Restaurante",
			CNPJ:           document,
			RazaoSocial:    "Restaurante Teste LTDA",
			SeuNome:        "Maria",
			SuaFuncao:      "Proprietário",
			Email:          "maria@example.com",
			Celular:        "11999998888",
			TermsAccepted:  true,
		},
		Address: models.Address{
			CEP:      "01310100",
			Endereco: "Avenida Paulista, 1000",
			Bairro:   "Bela Vista",
			Cidade:   "São Paulo",
			Estado:   "SP",
		},
		CreatedAt: time.Now(),
	}
}

func (s *PostgresStoreSuite) TestSessionRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	session := &models.Session{
		ID:        uuid.NewString(),
		Type:      models.TypeCPF,
		Step:      models.StepOne,
		Device:    "Chrome on Linux",
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.Save(ctx, session))

	got, err := s.store.FindByID(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.ID, got.ID)
	s.Equal(models.TypeCPF, got.Type)
	s.Nil(got.Step1)

	session.Step1 = &models.Step1Data{CPF: "11144477735", NomeCompleto: "João"}
	session.Step = models.StepTwo
	s.Require().NoError(s.store.Save(ctx, session))

	got, err = s.store.FindByID(ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.Step1)
	s.Equal("11144477735", got.Step1.CPF)
	s.Equal(models.StepTwo, got.Step)
}

func (s *PostgresStoreSuite) TestFindSessionNotFound() {
	_, err := s.store.FindByID(context.Background(), uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCreateAndFindRecord() {
	ctx := context.Background()
	record := testRecord("11222333000181")
	s.Require().NoError(s.store.Create(ctx, record))

	got, err := s.store.FindCompletedByDocument(ctx, "11222333000181", models.TypeCNPJ)
	s.Require().NoError(err)
	s.Equal(record.ID, got.ID)
	s.Equal("São Paulo", got.Address.Cidade)

	_, err = s.store.FindCompletedByDocument(ctx, "11222333000181", models.TypeCPF)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateDocumentConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, testRecord("11222333000181")))

	err := s.store.Create(ctx, testRecord("11222333000181"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestCountByType() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, testRecord("11222333000181")))
	s.Require().NoError(s.store.Create(ctx, testRecord("11444777000161")))

	n, err := s.store.CountByType(ctx, models.TypeCNPJ)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.store.CountByType(ctx, models.TypeCPF)
	s.Require().NoError(err)
	s.Zero(n)
}

// TestConcurrentCreateExactlyOneWins drives concurrent finalizations of the
// same document through RunInTx and relies on the unique index to let exactly
// one commit.
func (s *PostgresStoreSuite) TestConcurrentCreateExactlyOneWins() {
	ctx := context.Background()
	const goroutines = 10

	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.RunInTx(ctx, "11222333000181", func(txCtx context.Context) error {
				return s.store.Create(txCtx, testRecord("11222333000181"))
			})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, sentinel.ErrConflict):
			conflicts++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, wins)
	s.Equal(goroutines-1, conflicts)
}
