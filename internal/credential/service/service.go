// Package service is the credential engine: issuance, verification,
// revocation and presentation build/verify on top of the identity manager.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"attesto/internal/credential/metrics"
	"attesto/internal/credential/schema"
	"attesto/internal/credential/statuslist"
	"attesto/internal/credential/store"
	"attesto/internal/events"
	idmodels "attesto/internal/identity/models"
	"attesto/internal/platform/tracer"
	id "attesto/pkg/domain"
)

const (
	defaultValidity      = 365 * 24 * time.Hour
	defaultStatusBaseURL = "http://localhost:8080"
)

// Identity is the subset of the identity manager the engine signs and
// verifies through.
type Identity interface {
	ValidateDID(did string) error
	ResolveDID(ctx context.Context, did string) (*idmodels.Document, error)
	SignWithDID(ctx context.Context, ownerID id.UserID, did string, data []byte, passphrase string) (*idmodels.Signature, error)
	VerifySignature(ctx context.Context, did string, data []byte, signature, verificationMethodID string) (bool, error)
}

// Service is the credential engine.
type Service struct {
	identity      Identity
	credentials   store.CredentialStore
	revocations   store.RevocationStore
	statusLists   store.StatusListStore
	schemas       store.SchemaStore
	presentations store.PresentationStore
	validator     *schema.Validator

	events  events.Publisher
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger
	newID   func() string

	validity         time.Duration
	statusBaseURL    string
	statusListLength uint

	statusMu  sync.Mutex
	statusSeq int
}

// Stores groups the engine's repositories.
type Stores struct {
	Credentials   store.CredentialStore
	Revocations   store.RevocationStore
	StatusLists   store.StatusListStore
	Schemas       store.SchemaStore
	Presentations store.PresentationStore
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithEvents(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithValidity sets the default validity window for issued credentials.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithStatusListBaseURL sets the public origin status list URLs are built on.
func WithStatusListBaseURL(base string) Option {
	return func(s *Service) {
		if base != "" {
			s.statusBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithStatusListLength sets the number of entries per status list.
func WithStatusListLength(n uint) Option {
	return func(s *Service) {
		if n > 0 {
			s.statusListLength = n
		}
	}
}

// WithIDGenerator overrides credential and presentation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func New(identity Identity, stores Stores, opts ...Option) (*Service, error) {
	if identity == nil {
		return nil, fmt.Errorf("identity manager is required")
	}
	if stores.Credentials == nil || stores.Revocations == nil || stores.StatusLists == nil ||
		stores.Schemas == nil || stores.Presentations == nil {
		return nil, fmt.Errorf("credential stores are required")
	}
	svc := &Service{
		identity:         identity,
		credentials:      stores.Credentials,
		revocations:      stores.Revocations,
		statusLists:      stores.StatusLists,
		schemas:          stores.Schemas,
		presentations:    stores.Presentations,
		validator:        schema.NewValidator(),
		events:           events.Discard,
		tracer:           tracer.NewNoop(),
		logger:           slog.Default(),
		newID:            func() string { return uuid.NewString() },
		validity:         defaultValidity,
		statusBaseURL:    defaultStatusBaseURL,
		statusListLength: statuslist.DefaultLength,
		statusSeq:        1,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// StatusListURL is the published location of a status list.
func (s *Service) StatusListURL(listID string) string {
	return s.statusBaseURL + "/status-lists/" + listID
}
