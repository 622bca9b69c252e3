// Package httptransport is the thin chi surface over the wallet, credential
// and identity services. Handlers decode, delegate and encode; business rules
// stay in the services.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	credmodels "attesto/internal/credential/models"
	"attesto/internal/exchange"
	idmodels "attesto/internal/identity/models"
	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
)

// WalletService is the vault surface used by the /wallet routes.
type WalletService interface {
	CreateWallet(ctx context.Context, ownerID id.UserID, passphrase string, opts models.CreateOptions) (*models.CreateResult, error)
	UnlockWallet(ctx context.Context, ownerID id.UserID, passphrase string) (*models.UnlockResult, error)
	LockWallet(ctx context.Context, ownerID id.UserID) error
	IsWalletUnlocked(ctx context.Context, ownerID id.UserID) (bool, error)
	GetWallet(ctx context.Context, ownerID id.UserID) (*models.Wallet, error)
	AddCredential(ctx context.Context, ownerID id.UserID, vc *credmodels.VerifiableCredential) error
	RemoveCredential(ctx context.Context, ownerID id.UserID, credentialID string) error
	GetCredentials(ctx context.Context, ownerID id.UserID) ([]credmodels.VerifiableCredential, error)
	MatchCredentials(ctx context.Context, ownerID id.UserID, descriptors []exchange.InputDescriptor) (*exchange.Result, error)
	PresentCredentials(ctx context.Context, ownerID id.UserID, passphrase string, descriptors []exchange.InputDescriptor, challenge, domain string) (*models.PresentResult, error)
	CreateBackup(ctx context.Context, ownerID id.UserID, passphrase string) (*models.Backup, error)
	ListBackups(ctx context.Context, ownerID id.UserID) ([]*models.Backup, error)
	RestoreFromBackup(ctx context.Context, ownerID id.UserID, backupID id.BackupID, passphrase string) (*models.Wallet, error)
}

// CredentialService is the verifier surface.
type CredentialService interface {
	VerifyCredential(ctx context.Context, vc *credmodels.VerifiableCredential, opts credmodels.VerifyOptions) (*credmodels.VerificationResult, error)
	VerifyPresentation(ctx context.Context, vp *credmodels.VerifiablePresentation, opts credmodels.PresentationVerifyOptions) (*credmodels.PresentationResult, error)
	GetStatusList(ctx context.Context, listID string) (*credmodels.StatusList, error)
}

// Resolver resolves DID documents.
type Resolver interface {
	ResolveDID(ctx context.Context, did string) (*idmodels.Document, error)
}

type Handler struct {
	wallets        WalletService
	credentials    CredentialService
	resolver       Resolver
	trustedIssuers []string
	logger         *slog.Logger
}

type Option func(*Handler)

// WithTrustedIssuers sets the issuer allow-list used when a verify request
// does not carry its own.
func WithTrustedIssuers(issuers []string) Option {
	return func(h *Handler) {
		h.trustedIssuers = issuers
	}
}

func New(wallets WalletService, credentials CredentialService, resolver Resolver, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		wallets:     wallets,
		credentials: credentials,
		resolver:    resolver,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public verifier routes on r and the /wallet routes
// behind requireAuth.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Post("/credentials/verify", h.HandleVerifyCredential)
	r.Post("/presentations/verify", h.HandleVerifyPresentation)
	r.Get("/dids/{did}", h.HandleResolveDID)
	r.Get("/status-lists/{id}", h.HandleGetStatusList)

	r.Route("/wallet", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", h.HandleCreateWallet)
		r.Get("/status", h.HandleWalletStatus)
		r.Post("/unlock", h.HandleUnlockWallet)
		r.Post("/lock", h.HandleLockWallet)
		r.Get("/credentials", h.HandleListCredentials)
		r.Post("/credentials", h.HandleAddCredential)
		r.Delete("/credentials/{id}", h.HandleRemoveCredential)
		r.Post("/presentations", h.HandlePresent)
		r.Post("/presentations/match", h.HandleMatch)
		r.Get("/backups", h.HandleListBackups)
		r.Post("/backups", h.HandleCreateBackup)
		r.Post("/backups/{id}/restore", h.HandleRestoreBackup)
	})
}
