// Package service is the wallet vault: passphrase-gated sessions with
// lockout, credential custody, encrypted backup and restore.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	credmodels "attesto/internal/credential/models"
	"attesto/internal/crypto"
	"attesto/internal/events"
	idmodels "attesto/internal/identity/models"
	"attesto/internal/wallet/lockout"
	"attesto/internal/wallet/metrics"
	"attesto/internal/wallet/models"
	"attesto/internal/wallet/session"
	"attesto/internal/wallet/store"
	id "attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	psync "attesto/pkg/platform/sync"
)

const (
	defaultSessionTimeout = 15 * time.Minute
	sessionSaltSize       = 16
)

var errInvalidPassphrase = dErrors.New(dErrors.CodeWallet, "invalid passphrase")

// Identity is the subset of the identity manager the vault delegates key
// custody to.
type Identity interface {
	ValidatePassphrase(passphrase string) error
	CreateDID(ctx context.Context, ownerID id.UserID, didMethod idmodels.Method, passphrase string, opts idmodels.CreateOptions) (*idmodels.CreateResult, error)
	CheckPassphrase(ctx context.Context, ownerID id.UserID, did, passphrase string) error
	RotateKeys(ctx context.Context, ownerID id.UserID, did, oldPassphrase, newPassphrase, reason string) (*idmodels.RotationResult, error)
	DeactivateDID(ctx context.Context, ownerID id.UserID, did, reason string) error
	AbandonDID(ctx context.Context, ownerID id.UserID, did, reason string) error
	ListDIDs(ctx context.Context, ownerID id.UserID) ([]*idmodels.DID, error)
	ListKeyPairs(ctx context.Context, ownerID id.UserID) ([]*idmodels.KeyPair, error)
	ImportIdentity(ctx context.Context, ownerID id.UserID, dids []*idmodels.DID, keys []*idmodels.KeyPair) error
}

// Presenter builds signed presentations from held credentials.
type Presenter interface {
	CreatePresentation(ctx context.Context, req credmodels.PresentationRequest) (*credmodels.VerifiablePresentation, error)
}

// Stores groups the vault's repositories.
type Stores struct {
	Wallets  store.WalletStore
	Backups  store.BackupStore
	Sessions session.Store
}

// Service is the wallet vault.
type Service struct {
	identity  Identity
	crypto    crypto.Provider
	wallets   store.WalletStore
	backups   store.BackupStore
	sessions  session.Store
	lockouts  *lockout.Tracker
	presenter Presenter
	locks     *psync.KeyedMutex

	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	sessionTimeout time.Duration
	backupOnCreate bool
	defaultMethod  idmodels.Method
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

// WithPresenter enables PresentCredentials.
func WithPresenter(p Presenter) Option {
	return func(s *Service) {
		s.presenter = p
	}
}

func WithSessionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionTimeout = d
		}
	}
}

// WithBackupOnCreate makes CreateWallet take a backup unless the caller
// opts out.
func WithBackupOnCreate(enabled bool) Option {
	return func(s *Service) {
		s.backupOnCreate = enabled
	}
}

// WithDefaultMethod sets the DID method used when CreateOptions omits one.
func WithDefaultMethod(m idmodels.Method) Option {
	return func(s *Service) {
		if m != "" {
			s.defaultMethod = m
		}
	}
}

func New(identity Identity, provider crypto.Provider, stores Stores, lockouts *lockout.Tracker, opts ...Option) (*Service, error) {
	if identity == nil {
		return nil, fmt.Errorf("identity manager is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("crypto provider is required")
	}
	if stores.Wallets == nil || stores.Backups == nil || stores.Sessions == nil {
		return nil, fmt.Errorf("wallet stores are required")
	}
	if lockouts == nil {
		return nil, fmt.Errorf("lockout tracker is required")
	}
	svc := &Service{
		identity:       identity,
		crypto:         provider,
		wallets:        stores.Wallets,
		backups:        stores.Backups,
		sessions:       stores.Sessions,
		lockouts:       lockouts,
		locks:          psync.NewKeyedMutex(),
		events:         events.Discard,
		logger:         slog.Default(),
		sessionTimeout: defaultSessionTimeout,
		defaultMethod:  idmodels.MethodKey,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SessionTimeout is the lifetime of an unlock session.
func (s *Service) SessionTimeout() time.Duration {
	return s.sessionTimeout
}

// GetWallet returns the owner's wallet.
func (s *Service) GetWallet(ctx context.Context, ownerID id.UserID) (w *models.Wallet, err error) {
	defer s.guard(ctx, "get_wallet", &err)
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	return s.loadWallet(ctx, ownerID)
}

func (s *Service) loadWallet(ctx context.Context, ownerID id.UserID) (*models.Wallet, error) {
	w, err := s.wallets.FindByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "wallet not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wallet")
	}
	return w, nil
}

// ownerLock serializes check-then-act sequences for one owner's wallet.
func (s *Service) ownerLock(ownerID id.UserID) func() {
	return s.locks.Lock("wallet:" + ownerID.String())
}

// verifyPassphrase checks passphrase against the wallet's primary key.
func (s *Service) verifyPassphrase(ctx context.Context, w *models.Wallet, passphrase string) error {
	err := s.identity.CheckPassphrase(ctx, w.OwnerID, w.PrimaryDID, passphrase)
	if err == nil {
		return nil
	}
	if dErrors.HasCode(err, dErrors.CodeWallet) {
		return errInvalidPassphrase
	}
	return dErrors.Internal(err, "failed to verify passphrase")
}

func requireUsable(w *models.Wallet) error {
	switch w.Status {
	case models.StatusDeactivated:
		return dErrors.New(dErrors.CodeWallet, "wallet is deactivated")
	case models.StatusLocked:
		return dErrors.New(dErrors.CodeWallet, "wallet is locked and requires recovery")
	}
	return nil
}

// keyRefs projects the identity manager's key pairs for the wallet's DIDs.
func (s *Service) keyRefs(ctx context.Context, w *models.Wallet) ([]models.KeyRef, error) {
	keys, err := s.identity.ListKeyPairs(ctx, w.OwnerID)
	if err != nil {
		return nil, dErrors.Internal(err, "failed to list key pairs")
	}
	var refs []models.KeyRef
	for _, k := range keys {
		if !w.OwnsDID(k.DID) {
			continue
		}
		refs = append(refs, models.KeyRef{
			ID:                   k.ID,
			DID:                  k.DID,
			Scheme:               k.Scheme,
			PublicKeyMultibase:   k.PublicKeyMultibase,
			VerificationMethodID: k.VerificationMethodID,
			Status:               k.Status,
		})
	}
	return refs, nil
}
