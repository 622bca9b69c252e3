package service

import (
	"context"
	"errors"
	"fmt"

	"attesto/internal/crypto"
	"attesto/internal/events"
	idmodels "attesto/internal/identity/models"
	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

var walletPurposes = []idmodels.Purpose{
	idmodels.PurposeAuthentication,
	idmodels.PurposeAssertionMethod,
	idmodels.PurposeKeyAgreement,
}

// CreateWallet creates the owner's wallet around a fresh primary DID.
func (s *Service) CreateWallet(ctx context.Context, ownerID id.UserID, passphrase string, opts models.CreateOptions) (res *models.CreateResult, err error) {
	defer s.guard(ctx, "create_wallet", &err)

	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	if err := s.identity.ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}
	if opts.RecoveryConfig != nil {
		if err := validateRecovery(opts.RecoveryConfig); err != nil {
			return nil, err
		}
	}

	unlock := s.ownerLock(ownerID)
	defer unlock()

	if _, err := s.wallets.FindByOwner(ctx, ownerID); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "owner already has a wallet")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up wallet")
	}

	method := opts.Method
	if method == "" {
		method = s.defaultMethod
	}
	created, err := s.identity.CreateDID(ctx, ownerID, method, passphrase, idmodels.CreateOptions{
		Purposes:     walletPurposes,
		SetAsPrimary: true,
		Scheme:       opts.Scheme,
	})
	if err != nil {
		return nil, dErrors.Internal(err, "failed to create DID")
	}

	now := requestcontext.Now(ctx)
	w := &models.Wallet{
		ID:             id.NewWalletID(),
		OwnerID:        ownerID,
		PrimaryDID:     created.DID.DID,
		DIDs:           []string{created.DID.DID},
		RecoveryConfig: models.RecoveryConfig{Method: models.RecoveryBackup},
		Status:         models.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
	if opts.RecoveryConfig != nil {
		w.RecoveryConfig = *opts.RecoveryConfig
	}
	if w.KeyPairs, err = s.keyRefs(ctx, w); err != nil {
		s.discardDID(ctx, ownerID, w.PrimaryDID)
		return nil, err
	}
	if err := s.wallets.Save(ctx, w); err != nil {
		s.discardDID(ctx, ownerID, w.PrimaryDID)
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "owner already has a wallet")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save wallet")
	}

	res = &models.CreateResult{Wallet: w}
	backup := s.backupOnCreate
	if opts.Backup != nil {
		backup = *opts.Backup
	}
	if backup {
		if res.Backup, err = s.createBackup(ctx, w, passphrase); err != nil {
			return nil, err
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementWalletsCreated()
	}
	s.publish(ctx, events.WalletCreated, w.ID.String(), map[string]string{
		"owner_id":    ownerID.String(),
		"primary_did": w.PrimaryDID,
	})
	s.logAudit(ctx, "wallet_created",
		"wallet_id", w.ID.String(),
		"owner_id", ownerID.String(),
		"primary_did", w.PrimaryDID,
		"backup", res.Backup != nil,
	)
	return res, nil
}

func validateRecovery(cfg *models.RecoveryConfig) error {
	switch cfg.Method {
	case models.RecoveryBackup:
		return nil
	case models.RecoverySocial:
		if cfg.Threshold <= 0 || cfg.Threshold > len(cfg.Guardians) {
			return dErrors.New(dErrors.CodeValidation, "recovery threshold must be between 1 and the number of guardians")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported recovery method %q", cfg.Method))
	}
}

// UnlockWallet opens a session after checking the passphrase against the
// primary key. Consecutive failures saturate the lockout counter, after which
// every attempt fails with *models.LockoutError until the window passes.
func (s *Service) UnlockWallet(ctx context.Context, ownerID id.UserID, passphrase string) (res *models.UnlockResult, err error) {
	defer s.guard(ctx, "unlock_wallet", &err)
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}

	unlock := s.ownerLock(ownerID)
	defer unlock()

	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := requireUsable(w); err != nil {
		return nil, err
	}

	lockKey := w.ID.String()
	status, err := s.lockouts.Check(ctx, lockKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check lockout")
	}
	if status.Blocked {
		s.recordUnlock("locked_out")
		return nil, &models.LockoutError{UnlockAt: status.UnlockAt}
	}

	if err := s.verifyPassphrase(ctx, w, passphrase); err != nil {
		if !errors.Is(err, errInvalidPassphrase) {
			return nil, err
		}
		status, rerr := s.lockouts.RecordFailure(ctx, lockKey)
		if rerr != nil {
			return nil, dErrors.Wrap(rerr, dErrors.CodeInternal, "failed to record unlock failure")
		}
		s.recordUnlock("failure")
		if status.Blocked {
			if s.metrics != nil {
				s.metrics.IncrementLockouts()
			}
			s.logAudit(ctx, "wallet_lockout_triggered",
				"wallet_id", lockKey,
				"owner_id", ownerID.String(),
				"failures", status.Failures,
				"unlock_at", status.UnlockAt,
			)
		}
		return nil, err
	}
	if err := s.lockouts.Reset(ctx, lockKey); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset lockout")
	}

	sess, err := s.newSession(ctx, w, passphrase)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store session")
	}
	w.LastAccessedAt = sess.CreatedAt
	if err := s.wallets.Update(ctx, w); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update wallet")
	}

	s.recordUnlock("success")
	s.publish(ctx, events.WalletUnlocked, w.ID.String(), map[string]string{"owner_id": ownerID.String()})
	s.logAudit(ctx, "wallet_unlocked",
		"wallet_id", w.ID.String(),
		"owner_id", ownerID.String(),
		"expires_at", sess.ExpiresAt,
	)
	return &models.UnlockResult{WalletID: w.ID, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *Service) recordUnlock(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementUnlock(outcome)
	}
}

// newSession derives a fresh session key under a new salt. Only its digest
// is stored.
func (s *Service) newSession(ctx context.Context, w *models.Wallet, passphrase string) (*models.Session, error) {
	salt, err := s.crypto.RandomBytes(sessionSaltSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate session salt")
	}
	key := s.crypto.DeriveKey(passphrase, salt, s.crypto.KDFParams())
	digest := s.crypto.SHA256(key)
	crypto.Zero(key)

	now := requestcontext.Now(ctx)
	return &models.Session{
		WalletID:  w.ID,
		OwnerID:   w.OwnerID,
		Salt:      crypto.EncodeBase64URL(salt),
		KeyDigest: crypto.EncodeBase64URL(digest),
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTimeout),
	}, nil
}

// LockWallet drops any session for the owner's wallet.
func (s *Service) LockWallet(ctx context.Context, ownerID id.UserID) (err error) {
	defer s.guard(ctx, "lock_wallet", &err)
	if ownerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := s.dropSession(ctx, w); err != nil {
		return err
	}
	s.publish(ctx, events.WalletLocked, w.ID.String(), map[string]string{"owner_id": ownerID.String()})
	s.logAudit(ctx, "wallet_locked", "wallet_id", w.ID.String(), "owner_id", ownerID.String())
	return nil
}

func (s *Service) dropSession(ctx context.Context, w *models.Wallet) error {
	if err := s.sessions.Delete(ctx, w.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to drop session")
	}
	return nil
}

// IsWalletUnlocked reports whether a live session exists. An expired session
// is evicted.
func (s *Service) IsWalletUnlocked(ctx context.Context, ownerID id.UserID) (unlocked bool, err error) {
	defer s.guard(ctx, "is_wallet_unlocked", &err)
	if ownerID.IsNil() {
		return false, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return s.sessionActive(ctx, w)
}

func (s *Service) sessionActive(ctx context.Context, w *models.Wallet) (bool, error) {
	sess, err := s.sessions.Get(ctx, w.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if sess.IsExpired(requestcontext.Now(ctx)) {
		if err := s.sessions.Delete(ctx, w.ID); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to evict session")
		}
		return false, nil
	}
	return true, nil
}

func (s *Service) requireUnlocked(ctx context.Context, w *models.Wallet) error {
	if err := requireUsable(w); err != nil {
		return err
	}
	ok, err := s.sessionActive(ctx, w)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeWallet, "wallet must be unlocked")
	}
	return nil
}

// discardDID retires a DID whose wallet was never stored so a retry can
// create a fresh primary.
func (s *Service) discardDID(ctx context.Context, ownerID id.UserID, did string) {
	if err := s.identity.AbandonDID(ctx, ownerID, did, "wallet creation failed"); err != nil {
		s.logger.ErrorContext(ctx, "failed to discard DID after wallet creation failed",
			"did", did,
			"owner_id", ownerID.String(),
			"error", err,
		)
	}
}

// ChangePassphrase rotates every active wallet DID onto newPassphrase and
// ends any open session.
func (s *Service) ChangePassphrase(ctx context.Context, ownerID id.UserID, oldPassphrase, newPassphrase string) (err error) {
	defer s.guard(ctx, "change_passphrase", &err)
	if ownerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	if err := s.identity.ValidatePassphrase(newPassphrase); err != nil {
		return err
	}

	unlock := s.ownerLock(ownerID)
	defer unlock()

	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := requireUsable(w); err != nil {
		return err
	}
	if err := s.verifyPassphrase(ctx, w, oldPassphrase); err != nil {
		return err
	}

	dids, err := s.identity.ListDIDs(ctx, ownerID)
	if err != nil {
		return dErrors.Internal(err, "failed to list DIDs")
	}
	var owned []string
	for _, d := range dids {
		if w.OwnsDID(d.DID) && d.IsActive() {
			owned = append(owned, d.DID)
		}
	}
	// Every DID must accept the old passphrase before any key is rotated.
	for _, did := range owned {
		if err := s.identity.CheckPassphrase(ctx, ownerID, did, oldPassphrase); err != nil {
			if dErrors.HasCode(err, dErrors.CodeWallet) {
				return dErrors.New(dErrors.CodeWallet, fmt.Sprintf("%s does not accept the current passphrase", did))
			}
			return dErrors.Internal(err, "failed to verify passphrase")
		}
	}
	for _, did := range owned {
		if _, err := s.identity.RotateKeys(ctx, ownerID, did, oldPassphrase, newPassphrase, "passphrase change"); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to rotate keys for %s", did))
		}
	}
	rotated := len(owned)

	wasUnlocked, err := s.sessionActive(ctx, w)
	if err != nil {
		return err
	}
	if wasUnlocked {
		if err := s.dropSession(ctx, w); err != nil {
			return err
		}
	}

	if w.KeyPairs, err = s.keyRefs(ctx, w); err != nil {
		return err
	}
	w.UpdatedAt = requestcontext.Now(ctx)
	if err := s.wallets.Update(ctx, w); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update wallet")
	}

	if wasUnlocked {
		s.publish(ctx, events.WalletLocked, w.ID.String(), map[string]string{
			"owner_id": ownerID.String(),
			"reason":   "passphrase_changed",
		})
	}
	s.logAudit(ctx, "wallet_passphrase_changed",
		"wallet_id", w.ID.String(),
		"owner_id", ownerID.String(),
		"rotated_dids", rotated,
	)
	return nil
}

// DeactivateWallet ends the session, deactivates every wallet DID and marks
// the wallet deactivated. Only a restore brings the identity back.
func (s *Service) DeactivateWallet(ctx context.Context, ownerID id.UserID, passphrase, reason string) (err error) {
	defer s.guard(ctx, "deactivate_wallet", &err)
	if ownerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}

	unlock := s.ownerLock(ownerID)
	defer unlock()

	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return err
	}
	if w.Status == models.StatusDeactivated {
		return dErrors.New(dErrors.CodeWallet, "wallet is deactivated")
	}
	if err := s.verifyPassphrase(ctx, w, passphrase); err != nil {
		return err
	}
	if err := s.dropSession(ctx, w); err != nil {
		return err
	}
	for _, did := range w.DIDs {
		if err := s.identity.DeactivateDID(ctx, ownerID, did, reason); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to deactivate %s", did))
		}
	}

	now := requestcontext.Now(ctx)
	w.Status = models.StatusDeactivated
	w.DeactivatedAt = &now
	w.UpdatedAt = now
	if w.KeyPairs, err = s.keyRefs(ctx, w); err != nil {
		return err
	}
	if err := s.wallets.Update(ctx, w); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update wallet")
	}

	s.publish(ctx, events.WalletDeactivated, w.ID.String(), map[string]string{
		"owner_id": ownerID.String(),
		"reason":   reason,
	})
	s.logAudit(ctx, "wallet_deactivated",
		"wallet_id", w.ID.String(),
		"owner_id", ownerID.String(),
		"reason", reason,
	)
	return nil
}
