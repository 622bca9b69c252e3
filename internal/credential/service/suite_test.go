package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Identity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"attesto/internal/credential/models"
	"attesto/internal/credential/store"
	"attesto/internal/crypto"
	"attesto/internal/events"
	idmodels "attesto/internal/identity/models"
	idservice "attesto/internal/identity/service"
	idstore "attesto/internal/identity/store"
	id "attesto/pkg/domain"
	"attesto/pkg/requestcontext"
)

const passphrase = "secure-passphrase-123"

type CredentialServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	identity *idservice.Service
	stores   Stores
	events   *events.Recorder
	service  *Service

	issuerOwner id.UserID
	issuerDID   string
	holderOwner id.UserID
	holderDID   string
}

func TestCredentialServiceSuite(t *testing.T) {
	suite.Run(t, new(CredentialServiceSuite))
}

func (s *CredentialServiceSuite) SetupTest() {
	s.now = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	provider := crypto.New(crypto.WithKDFParams(crypto.KDFParams{Time: 1, MemoryKiB: 64, Threads: 1}))
	var err error
	s.identity, err = idservice.New(
		idstore.NewInMemoryDIDStore(),
		idstore.NewInMemoryDocumentStore(),
		idstore.NewInMemoryKeyStore(),
		provider,
		idservice.WithLogger(discardLogger()),
	)
	s.Require().NoError(err)

	s.stores = Stores{
		Credentials:   store.NewInMemoryCredentialStore(),
		Revocations:   store.NewInMemoryRevocationStore(),
		StatusLists:   store.NewInMemoryStatusListStore(),
		Schemas:       store.NewInMemorySchemaStore(),
		Presentations: store.NewInMemoryPresentationStore(),
	}
	s.events = events.NewRecorder()
	s.service = s.newService()

	s.issuerOwner = id.UserID(uuid.New())
	s.issuerDID = s.createDID(s.issuerOwner)
	s.holderOwner = id.UserID(uuid.New())
	s.holderDID = s.createDID(s.holderOwner)
}

func (s *CredentialServiceSuite) newService(opts ...Option) *Service {
	opts = append([]Option{
		WithLogger(discardLogger()),
		WithEvents(s.events),
		WithStatusListBaseURL("https://issuer.example"),
	}, opts...)
	svc, err := New(s.identity, s.stores, opts...)
	s.Require().NoError(err)
	return svc
}

func (s *CredentialServiceSuite) createDID(owner id.UserID) string {
	res, err := s.identity.CreateDID(s.ctx, owner, idmodels.MethodKey, passphrase, idmodels.CreateOptions{SetAsPrimary: true})
	s.Require().NoError(err)
	return res.DID.DID
}

func (s *CredentialServiceSuite) issueRequest(subject string) models.IssueRequest {
	return models.IssueRequest{
		IssuerOwnerID:    s.issuerOwner,
		IssuerDID:        s.issuerDID,
		IssuerName:       "Example Tutoring Ltd",
		IssuerPassphrase: passphrase,
		SubjectDID:       subject,
		Types:            []string{models.TypeSafeguardingCredential},
		Claims:           map[string]any{"checkType": "enhanced", "checkStatus": "cleared"},
	}
}

func (s *CredentialServiceSuite) issue(subject string) *models.VerifiableCredential {
	vc, err := s.service.IssueCredential(s.ctx, s.issueRequest(subject))
	s.Require().NoError(err)
	return vc
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func checkPassed(r *models.VerificationResult, name models.CheckName) bool {
	c, ok := r.Check(name)
	return ok && c.Passed
}
