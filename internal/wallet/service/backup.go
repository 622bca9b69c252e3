package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"

	"attesto/internal/crypto"
	"attesto/internal/events"
	idmodels "attesto/internal/identity/models"
	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// Restore failures that could reveal whether the passphrase was right share
// one message.
var errBackupUnreadable = dErrors.New(dErrors.CodeWallet, "invalid passphrase or corrupted backup")

// CreateBackup seals a snapshot of the wallet's identity and credentials
// under the passphrase.
func (s *Service) CreateBackup(ctx context.Context, ownerID id.UserID, passphrase string) (b *models.Backup, err error) {
	defer s.guard(ctx, "create_backup", &err)
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}

	unlock := s.ownerLock(ownerID)
	defer unlock()

	w, err := s.loadWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.createBackup(ctx, w, passphrase)
}

func (s *Service) createBackup(ctx context.Context, w *models.Wallet, passphrase string) (*models.Backup, error) {
	if w.Status == models.StatusDeactivated {
		return nil, dErrors.New(dErrors.CodeWallet, "wallet is deactivated")
	}
	if err := s.verifyPassphrase(ctx, w, passphrase); err != nil {
		return nil, err
	}

	payload, err := s.snapshot(ctx, w)
	if err != nil {
		return nil, err
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode backup")
	}
	defer crypto.Zero(plaintext)

	checksum := crypto.EncodeBase64URL(s.crypto.SHA256(plaintext))
	blob, err := s.crypto.SealWithPassphrase(passphrase, plaintext)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encrypt backup")
	}

	b := &models.Backup{
		ID:        id.NewBackupID(),
		OwnerID:   w.OwnerID,
		WalletID:  w.ID,
		Version:   models.BackupVersion,
		Encrypted: *blob,
		Checksum:  checksum,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.backups.Save(ctx, b); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save backup")
	}

	if s.metrics != nil {
		s.metrics.IncrementBackups()
	}
	s.logAudit(ctx, "wallet_backup_created",
		"wallet_id", w.ID.String(),
		"owner_id", w.OwnerID.String(),
		"backup_id", b.ID.String(),
		"credentials", len(payload.Credentials),
	)
	return b, nil
}

// snapshot gathers the identity records behind the wallet's DIDs.
func (s *Service) snapshot(ctx context.Context, w *models.Wallet) (*models.BackupPayload, error) {
	dids, err := s.identity.ListDIDs(ctx, w.OwnerID)
	if err != nil {
		return nil, dErrors.Internal(err, "failed to list DIDs")
	}
	keys, err := s.identity.ListKeyPairs(ctx, w.OwnerID)
	if err != nil {
		return nil, dErrors.Internal(err, "failed to list key pairs")
	}
	p := &models.BackupPayload{
		Version:        models.BackupVersion,
		WalletID:       w.ID,
		OwnerID:        w.OwnerID,
		PrimaryDID:     w.PrimaryDID,
		DIDs:           []*idmodels.DID{},
		KeyPairs:       []*idmodels.KeyPair{},
		Credentials:    w.Credentials,
		RecoveryConfig: w.RecoveryConfig,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
	}
	for _, d := range dids {
		if w.OwnsDID(d.DID) {
			p.DIDs = append(p.DIDs, d)
		}
	}
	for _, k := range keys {
		if w.OwnsDID(k.DID) {
			p.KeyPairs = append(p.KeyPairs, k)
		}
	}
	return p, nil
}

// RestoreFromBackup replaces the owner's wallet with the backed-up snapshot.
// The identity records are re-imported, the wallet comes back active and
// locked, and the unlock failure counter is cleared.
func (s *Service) RestoreFromBackup(ctx context.Context, ownerID id.UserID, backupID id.BackupID, passphrase string) (w *models.Wallet, err error) {
	defer s.guard(ctx, "restore_backup", &err)
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.IncrementRestore(err == nil)
		}
	}()

	unlock := s.ownerLock(ownerID)
	defer unlock()

	b, err := s.backups.FindByID(ctx, backupID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "backup not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load backup")
	}
	if b.OwnerID != ownerID {
		return nil, dErrors.New(dErrors.CodeNotFound, "backup not found")
	}

	payload, err := s.openBackup(b, passphrase)
	if err != nil {
		s.logAudit(ctx, "wallet_restore_failed",
			"owner_id", ownerID.String(),
			"backup_id", backupID.String(),
		)
		return nil, err
	}

	if err := s.identity.ImportIdentity(ctx, ownerID, payload.DIDs, payload.KeyPairs); err != nil {
		return nil, dErrors.Internal(err, "failed to import identity")
	}

	existing, err := s.wallets.FindByOwner(ctx, ownerID)
	switch {
	case err == nil:
		if err := s.dropSession(ctx, existing); err != nil {
			return nil, err
		}
		if err := s.lockouts.Reset(ctx, existing.ID.String()); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset lockout")
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up wallet")
	}
	if err := s.wallets.DeleteByOwner(ctx, ownerID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to replace wallet")
	}

	now := requestcontext.Now(ctx)
	w = &models.Wallet{
		ID:             payload.WalletID,
		OwnerID:        ownerID,
		PrimaryDID:     payload.PrimaryDID,
		Credentials:    payload.Credentials,
		RecoveryConfig: payload.RecoveryConfig,
		Status:         models.StatusActive,
		CreatedAt:      payload.CreatedAt,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
	for _, d := range payload.DIDs {
		w.DIDs = append(w.DIDs, d.DID)
	}
	for _, k := range payload.KeyPairs {
		w.KeyPairs = append(w.KeyPairs, models.KeyRef{
			ID:                   k.ID,
			DID:                  k.DID,
			Scheme:               k.Scheme,
			PublicKeyMultibase:   k.PublicKeyMultibase,
			VerificationMethodID: k.VerificationMethodID,
			Status:               k.Status,
		})
	}
	if err := s.lockouts.Reset(ctx, w.ID.String()); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset lockout")
	}
	if err := s.wallets.Save(ctx, w); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save restored wallet")
	}

	s.publish(ctx, events.WalletRecovered, w.ID.String(), map[string]string{
		"owner_id":  ownerID.String(),
		"backup_id": backupID.String(),
	})
	s.logAudit(ctx, "wallet_restored",
		"wallet_id", w.ID.String(),
		"owner_id", ownerID.String(),
		"backup_id", backupID.String(),
		"credentials", len(w.Credentials),
	)
	return w, nil
}

// openBackup decrypts and integrity-checks a backup. A wrong passphrase, a
// tampered ciphertext and an undecodable payload are indistinguishable.
func (s *Service) openBackup(b *models.Backup, passphrase string) (*models.BackupPayload, error) {
	plaintext, err := s.crypto.OpenWithPassphrase(passphrase, &b.Encrypted)
	if err != nil {
		return nil, errBackupUnreadable
	}
	defer crypto.Zero(plaintext)

	sum := crypto.EncodeBase64URL(s.crypto.SHA256(plaintext))
	if subtle.ConstantTimeCompare([]byte(sum), []byte(b.Checksum)) != 1 {
		return nil, errBackupUnreadable
	}

	var payload models.BackupPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, errBackupUnreadable
	}
	if payload.OwnerID != b.OwnerID || payload.PrimaryDID == "" {
		return nil, errBackupUnreadable
	}
	return &payload, nil
}

// ListBackups returns the owner's backups, newest first.
func (s *Service) ListBackups(ctx context.Context, ownerID id.UserID) (list []*models.Backup, err error) {
	defer s.guard(ctx, "list_backups", &err)
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	list, err = s.backups.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list backups")
	}
	return list, nil
}

// GetLatestBackup returns the owner's most recent backup.
func (s *Service) GetLatestBackup(ctx context.Context, ownerID id.UserID) (b *models.Backup, err error) {
	defer s.guard(ctx, "get_latest_backup", &err)
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner ID is required")
	}
	b, err = s.backups.FindLatest(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no backups for owner")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load backup")
	}
	return b, nil
}
