// Package service implements the identity and key manager: DID creation,
// resolution, signing, verification, key rotation and deactivation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"attesto/internal/crypto"
	"attesto/internal/identity/method"
	"attesto/internal/identity/models"
	"attesto/internal/identity/store"
	id "attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

const (
	defaultMinPassphraseLength = 12
	defaultCacheSize           = 1024
	defaultCacheTTL            = 5 * time.Minute
)

var errInvalidPassphrase = dErrors.New(dErrors.CodeWallet, "invalid passphrase")

// Service is the identity and key manager.
type Service struct {
	dids    store.DIDStore
	docs    store.DocumentStore
	keys    store.KeyStore
	crypto  crypto.Provider
	methods *method.Table
	cache   *expirable.LRU[string, *models.Document]
	logger  *slog.Logger
	newID   func() string

	minPassphraseLength int
	cacheSize           int
	cacheTTL            time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMethodTable replaces the default did:key + did:web(localhost) table.
func WithMethodTable(table *method.Table) Option {
	return func(s *Service) {
		if table != nil {
			s.methods = table
		}
	}
}

func WithMinPassphraseLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minPassphraseLength = n
		}
	}
}

// WithResolutionCache sizes the document cache used by ResolveDID.
func WithResolutionCache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		if size > 0 {
			s.cacheSize = size
		}
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithIDGenerator overrides key pair id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func New(dids store.DIDStore, docs store.DocumentStore, keys store.KeyStore, provider crypto.Provider, opts ...Option) (*Service, error) {
	if dids == nil || docs == nil || keys == nil {
		return nil, fmt.Errorf("identity stores are required")
	}
	if provider == nil {
		return nil, fmt.Errorf("crypto provider is required")
	}
	svc := &Service{
		dids:                dids,
		docs:                docs,
		keys:                keys,
		crypto:              provider,
		methods:             method.DefaultTable("localhost"),
		newID:               func() string { return uuid.NewString() },
		minPassphraseLength: defaultMinPassphraseLength,
		cacheSize:           defaultCacheSize,
		cacheTTL:            defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.cache = expirable.NewLRU[string, *models.Document](svc.cacheSize, nil, svc.cacheTTL)
	return svc, nil
}

// MinPassphraseLength is the shortest passphrase accepted for new key material.
func (s *Service) MinPassphraseLength() int {
	return s.minPassphraseLength
}

// ValidatePassphrase enforces the passphrase policy.
func (s *Service) ValidatePassphrase(passphrase string) error {
	if len(passphrase) < s.minPassphraseLength {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("passphrase must be at least %d characters", s.minPassphraseLength))
	}
	return nil
}

// ValidateDID checks the identifier is well formed under a supported method.
// It does not require the DID to be stored or locally decodable.
func (s *Service) ValidateDID(did string) error {
	m, err := method.Parse(did)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid DID format")
	}
	if _, err := s.methods.Get(m); err != nil {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported DID method %q", m))
	}
	return nil
}

// CreateDID generates a key pair for the method, encrypts the private key
// under the passphrase and persists the DID, its document and the key.
func (s *Service) CreateDID(ctx context.Context, ownerID id.UserID, m models.Method, passphrase string, opts models.CreateOptions) (*models.CreateResult, error) {
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	if err := s.ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}
	strategy, err := s.methods.Get(m)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported DID method %q", m))
	}
	scheme := opts.Scheme
	if scheme == "" {
		scheme = strategy.DefaultScheme()
	}
	if !scheme.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported key scheme %q", scheme))
	}
	purposes := opts.Purposes
	if len(purposes) == 0 {
		purposes = models.DefaultPurposes
	}

	if opts.SetAsPrimary {
		if _, err := s.dids.FindPrimary(ctx, ownerID); err == nil {
			return nil, dErrors.New(dErrors.CodeConflict, "owner already has a primary DID")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up primary DID")
		}
	}

	kp, err := s.crypto.GenerateKeyPair(scheme)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate key pair")
	}
	defer kp.Zero()

	publicKey, err := method.EncodePublicKey(scheme, kp.PublicKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode public key")
	}
	path := opts.WebPath
	if len(path) == 0 {
		path = []string{"users", ownerID.String(), s.newID()}
	}
	did, err := strategy.NewIdentifier(scheme, kp.PublicKey, path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "failed to build DID")
	}
	blob, err := s.crypto.SealWithPassphrase(passphrase, kp.PrivateKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encrypt private key")
	}

	now := requestcontext.Now(ctx)
	vm := models.VerificationMethod{
		ID:                 strategy.VerificationMethodID(did, publicKey, 1),
		Type:               method.VerificationMethodType(scheme),
		Controller:         did,
		PublicKeyMultibase: publicKey,
	}
	doc := method.BuildDocument(did, []models.VerificationMethod{vm}, purposes, now, now)
	record := &models.DID{
		DID:        did,
		Method:     m,
		OwnerID:    ownerID,
		Controller: did,
		Status:     models.StatusActive,
		IsPrimary:  opts.SetAsPrimary,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	key := &models.KeyPair{
		ID:                   s.newID(),
		DID:                  did,
		OwnerID:              ownerID,
		Scheme:               scheme,
		PublicKeyMultibase:   publicKey,
		EncryptedPrivateKey:  *blob,
		VerificationMethodID: vm.ID,
		Purposes:             append([]models.Purpose(nil), purposes...),
		IsPrimary:            opts.SetAsPrimary,
		Status:               models.StatusActive,
		CreatedAt:            now,
	}

	if err := s.dids.Save(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "DID already exists or owner already has a primary DID")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save DID")
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save DID document")
	}
	if err := s.keys.Save(ctx, key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save key pair")
	}

	s.logAudit(ctx, "did_created",
		"did", did,
		"method", string(m),
		"owner_id", ownerID.String(),
		"primary", opts.SetAsPrimary,
	)
	return &models.CreateResult{DID: record, Document: doc, KeyPair: key}, nil
}

// ResolveDID returns the document for did: cache first, then the document
// store, then local derivation for methods that support it.
func (s *Service) ResolveDID(ctx context.Context, did string) (*models.Document, error) {
	strategy, err := s.methods.ForDID(did)
	if err != nil {
		return nil, translateMethodErr(err)
	}
	if doc, ok := s.cache.Get(did); ok {
		return doc.Clone(), nil
	}

	doc, err := s.docs.Find(ctx, did)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		doc, err = strategy.Resolve(did, requestcontext.Now(ctx))
		if errors.Is(err, method.ErrStoredDocumentRequired) {
			return nil, dErrors.New(dErrors.CodeNotFound, "DID not found")
		}
		if err != nil {
			return nil, translateMethodErr(err)
		}
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load DID document")
	}

	s.cache.Add(did, doc.Clone())
	return doc, nil
}

// GetDocument returns the stored document for a managed DID.
func (s *Service) GetDocument(ctx context.Context, did string) (*models.Document, error) {
	doc, err := s.docs.Find(ctx, did)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "DID document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load DID document")
	}
	return doc, nil
}

// GetDID returns the stored DID record.
func (s *Service) GetDID(ctx context.Context, did string) (*models.DID, error) {
	record, err := s.dids.FindByDID(ctx, did)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "DID not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load DID")
	}
	return record, nil
}

// ListDIDs returns the owner's DIDs, oldest first.
func (s *Service) ListDIDs(ctx context.Context, ownerID id.UserID) ([]*models.DID, error) {
	list, err := s.dids.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list DIDs")
	}
	return list, nil
}

// GetPrimaryDID returns the owner's primary DID.
func (s *Service) GetPrimaryDID(ctx context.Context, ownerID id.UserID) (*models.DID, error) {
	record, err := s.dids.FindPrimary(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "primary DID not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load primary DID")
	}
	return record, nil
}

// ListKeyPairs returns every key pair the owner holds, revoked ones included.
func (s *Service) ListKeyPairs(ctx context.Context, ownerID id.UserID) ([]*models.KeyPair, error) {
	list, err := s.keys.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list key pairs")
	}
	return list, nil
}

// CheckPassphrase reports whether passphrase opens the DID's signing key.
// A failure is always the generic invalid-passphrase error.
func (s *Service) CheckPassphrase(ctx context.Context, ownerID id.UserID, did, passphrase string) error {
	record, err := s.ownedDID(ctx, ownerID, did)
	if err != nil {
		return err
	}
	key, err := s.signingKey(ctx, record.DID)
	if err != nil {
		return err
	}
	priv, err := s.crypto.OpenWithPassphrase(passphrase, &key.EncryptedPrivateKey)
	if err != nil {
		return errInvalidPassphrase
	}
	crypto.Zero(priv)
	return nil
}

// SignWithDID signs data with the DID's active signing key.
func (s *Service) SignWithDID(ctx context.Context, ownerID id.UserID, did string, data []byte, passphrase string) (*models.Signature, error) {
	record, err := s.ownedDID(ctx, ownerID, did)
	if err != nil {
		return nil, err
	}
	if !record.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "DID is deactivated")
	}
	key, err := s.signingKey(ctx, record.DID)
	if err != nil {
		return nil, err
	}
	priv, err := s.crypto.OpenWithPassphrase(passphrase, &key.EncryptedPrivateKey)
	if err != nil {
		return nil, errInvalidPassphrase
	}
	defer crypto.Zero(priv)

	sig, err := s.crypto.Sign(key.Scheme, priv, data)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign payload")
	}
	return &models.Signature{
		Value:                crypto.EncodeBase64URL(sig),
		VerificationMethodID: key.VerificationMethodID,
		Scheme:               key.Scheme,
	}, nil
}

// VerifySignature checks signature over data against the referenced
// verification method. An invalid signature is (false, nil); errors are
// reserved for unresolvable DIDs and malformed inputs.
func (s *Service) VerifySignature(ctx context.Context, did string, data []byte, signature, verificationMethodID string) (bool, error) {
	doc, err := s.ResolveDID(ctx, did)
	if err != nil {
		return false, err
	}
	vm, ok := doc.FindMethod(verificationMethodID)
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "verification method not found in DID document")
	}
	scheme, publicKey, err := method.DecodePublicKey(vm.PublicKeyMultibase)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeValidation, "malformed verification method key")
	}
	sig, err := crypto.DecodeBase64URL(signature)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeValidation, "malformed signature encoding")
	}
	valid, err := s.crypto.Verify(scheme, publicKey, data, sig)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeValidation, "malformed signature")
	}
	return valid, nil
}

// RotateKeys replaces the DID's signing key with a fresh one encrypted under
// newPassphrase. The previous key is marked revoked and dropped from the document.
func (s *Service) RotateKeys(ctx context.Context, ownerID id.UserID, did, oldPassphrase, newPassphrase, reason string) (*models.RotationResult, error) {
	if err := s.ValidatePassphrase(newPassphrase); err != nil {
		return nil, err
	}
	record, err := s.ownedDID(ctx, ownerID, did)
	if err != nil {
		return nil, err
	}
	if !record.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "DID is deactivated")
	}
	strategy, err := s.methods.Get(record.Method)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "no strategy for stored DID method")
	}
	current, err := s.signingKey(ctx, did)
	if err != nil {
		return nil, err
	}
	priv, err := s.crypto.OpenWithPassphrase(oldPassphrase, &current.EncryptedPrivateKey)
	if err != nil {
		return nil, errInvalidPassphrase
	}
	crypto.Zero(priv)

	kp, err := s.crypto.GenerateKeyPair(current.Scheme)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate key pair")
	}
	defer kp.Zero()
	publicKey, err := method.EncodePublicKey(kp.Scheme, kp.PublicKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode public key")
	}
	blob, err := s.crypto.SealWithPassphrase(newPassphrase, kp.PrivateKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encrypt private key")
	}
	all, err := s.keys.FindByDID(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load key pairs")
	}

	now := requestcontext.Now(ctx)
	next := &models.KeyPair{
		ID:                   s.newID(),
		DID:                  did,
		OwnerID:              ownerID,
		Scheme:               kp.Scheme,
		PublicKeyMultibase:   publicKey,
		EncryptedPrivateKey:  *blob,
		VerificationMethodID: strategy.VerificationMethodID(did, publicKey, len(all)+1),
		Purposes:             append([]models.Purpose(nil), current.Purposes...),
		IsPrimary:            current.IsPrimary,
		Status:               models.StatusActive,
		CreatedAt:            now,
	}
	current.Status = models.StatusRevoked
	current.IsPrimary = false
	current.RevokedAt = &now
	current.RevocationReason = reason

	doc, err := s.loadOrDeriveDocument(ctx, did, strategy)
	if err != nil {
		return nil, err
	}
	methods := make([]models.VerificationMethod, 0, len(doc.VerificationMethod))
	for _, vm := range doc.VerificationMethod {
		if vm.ID != current.VerificationMethodID {
			methods = append(methods, vm)
		}
	}
	methods = append(methods, models.VerificationMethod{
		ID:                 next.VerificationMethodID,
		Type:               method.VerificationMethodType(next.Scheme),
		Controller:         did,
		PublicKeyMultibase: publicKey,
	})
	doc = method.BuildDocument(did, methods, next.Purposes, doc.Created, now)
	doc.Controller = record.Controller

	if err := s.keys.Update(ctx, current); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke previous key")
	}
	if err := s.keys.Save(ctx, next); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save rotated key")
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save DID document")
	}
	record.UpdatedAt = now
	if err := s.dids.Update(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update DID")
	}
	s.cache.Remove(did)

	s.logAudit(ctx, "did_keys_rotated",
		"did", did,
		"owner_id", ownerID.String(),
		"previous_key_id", current.ID,
		"new_key_id", next.ID,
		"reason", reason,
	)
	return &models.RotationResult{PreviousKeyID: current.ID, NewKey: next, Document: doc}, nil
}

// DeactivateDID marks the DID deactivated. Repeated calls are no-ops.
func (s *Service) DeactivateDID(ctx context.Context, ownerID id.UserID, did, reason string) error {
	record, err := s.ownedDID(ctx, ownerID, did)
	if err != nil {
		return err
	}
	if !record.IsActive() {
		return nil
	}
	strategy, err := s.methods.Get(record.Method)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "no strategy for stored DID method")
	}
	doc, err := s.loadOrDeriveDocument(ctx, did, strategy)
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	record.Status = models.StatusDeactivated
	record.DeactivatedAt = &now
	record.UpdatedAt = now
	record.Reason = reason
	doc.Deactivated = true
	doc.Updated = now

	if err := s.dids.Update(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate DID")
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save DID document")
	}
	s.cache.Remove(did)

	s.logAudit(ctx, "did_deactivated",
		"did", did,
		"owner_id", ownerID.String(),
		"reason", reason,
	)
	return nil
}

// AbandonDID deactivates a DID that never went into use and releases its
// primary flags, so the owner can create a new primary DID.
func (s *Service) AbandonDID(ctx context.Context, ownerID id.UserID, did, reason string) error {
	if err := s.DeactivateDID(ctx, ownerID, did, reason); err != nil {
		return err
	}
	record, err := s.ownedDID(ctx, ownerID, did)
	if err != nil {
		return err
	}
	if record.IsPrimary {
		record.IsPrimary = false
		if err := s.dids.Update(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release primary DID")
		}
	}

	keys, err := s.keys.FindByDID(ctx, did)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load key pairs")
	}
	now := requestcontext.Now(ctx)
	for _, k := range keys {
		if !k.IsActive() && !k.IsPrimary {
			continue
		}
		if k.IsActive() {
			k.Status = models.StatusRevoked
			k.RevokedAt = &now
			k.RevocationReason = reason
		}
		k.IsPrimary = false
		if err := s.keys.Update(ctx, k); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke key pair")
		}
	}

	s.logAudit(ctx, "did_abandoned",
		"did", did,
		"owner_id", ownerID.String(),
		"reason", reason,
	)
	return nil
}

// ImportIdentity upserts DID and key records carried by a wallet backup and
// rebuilds their documents from the active keys.
func (s *Service) ImportIdentity(ctx context.Context, ownerID id.UserID, dids []*models.DID, keys []*models.KeyPair) error {
	for _, d := range dids {
		if d.OwnerID != ownerID {
			return dErrors.New(dErrors.CodeForbidden, "DID belongs to another owner")
		}
		existing, err := s.dids.FindByDID(ctx, d.DID)
		switch {
		case err == nil:
			if existing.OwnerID != ownerID {
				return dErrors.New(dErrors.CodeConflict, "DID is registered to another owner")
			}
			err = s.dids.Update(ctx, d)
		case errors.Is(err, sentinel.ErrNotFound):
			err = s.dids.Save(ctx, d)
		}
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "owner already has a different primary DID")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to import DID")
		}
	}
	if err := s.retireUnlistedKeys(ctx, dids, keys); err != nil {
		return err
	}
	for _, k := range keys {
		if k.OwnerID != ownerID {
			return dErrors.New(dErrors.CodeForbidden, "key pair belongs to another owner")
		}
		err := s.keys.Update(ctx, k)
		if errors.Is(err, sentinel.ErrNotFound) {
			err = s.keys.Save(ctx, k)
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to import key pair")
		}
	}
	for _, d := range dids {
		if err := s.rebuildDocument(ctx, d, keys); err != nil {
			return err
		}
		s.cache.Remove(d.DID)
	}
	s.logAudit(ctx, "identity_imported", "owner_id", ownerID.String(), "dids", len(dids))
	return nil
}

// retireUnlistedKeys revokes stored keys of the imported DIDs that the import
// does not carry, so each DID keeps exactly the imported active keys.
func (s *Service) retireUnlistedKeys(ctx context.Context, dids []*models.DID, keys []*models.KeyPair) error {
	listed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		listed[k.ID] = struct{}{}
	}
	now := requestcontext.Now(ctx)
	for _, d := range dids {
		stored, err := s.keys.FindByDID(ctx, d.DID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load key pairs")
		}
		for _, k := range stored {
			if _, ok := listed[k.ID]; ok || !k.IsActive() {
				continue
			}
			k.Status = models.StatusRevoked
			k.IsPrimary = false
			k.RevokedAt = &now
			k.RevocationReason = "superseded by restore"
			if err := s.keys.Update(ctx, k); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke superseded key")
			}
		}
	}
	return nil
}

func (s *Service) rebuildDocument(ctx context.Context, d *models.DID, keys []*models.KeyPair) error {
	var methods []models.VerificationMethod
	var purposes []models.Purpose
	for _, k := range keys {
		if k.DID != d.DID || !k.IsActive() {
			continue
		}
		methods = append(methods, models.VerificationMethod{
			ID:                 k.VerificationMethodID,
			Type:               method.VerificationMethodType(k.Scheme),
			Controller:         d.DID,
			PublicKeyMultibase: k.PublicKeyMultibase,
		})
		purposes = k.Purposes
	}
	doc := method.BuildDocument(d.DID, methods, purposes, d.CreatedAt, d.UpdatedAt)
	doc.Controller = d.Controller
	doc.Deactivated = !d.IsActive()
	if err := s.docs.Save(ctx, doc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save DID document")
	}
	return nil
}

func (s *Service) ownedDID(ctx context.Context, ownerID id.UserID, did string) (*models.DID, error) {
	if _, err := s.methods.ForDID(did); err != nil {
		return nil, translateMethodErr(err)
	}
	record, err := s.GetDID(ctx, did)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != ownerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "DID is not owned by caller")
	}
	return record, nil
}

// signingKey picks the primary active key, falling back to the newest active one.
func (s *Service) signingKey(ctx context.Context, did string) (*models.KeyPair, error) {
	keys, err := s.keys.FindByDID(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load key pairs")
	}
	var chosen *models.KeyPair
	for _, k := range keys {
		if !k.IsActive() {
			continue
		}
		if k.IsPrimary {
			return k, nil
		}
		chosen = k
	}
	if chosen == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no active key for DID")
	}
	return chosen, nil
}

func (s *Service) loadOrDeriveDocument(ctx context.Context, did string, strategy method.Strategy) (*models.Document, error) {
	doc, err := s.docs.Find(ctx, did)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load DID document")
	}
	doc, err = strategy.Resolve(did, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "DID document not found")
	}
	return doc, nil
}

func translateMethodErr(err error) error {
	switch {
	case errors.Is(err, method.ErrUnsupportedMethod):
		return dErrors.New(dErrors.CodeValidation, "unsupported DID method")
	case errors.Is(err, method.ErrMalformedDID):
		return dErrors.New(dErrors.CodeValidation, "invalid DID format")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve DID")
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
