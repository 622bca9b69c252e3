package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"attesto/internal/crypto"
	"attesto/internal/events"
	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
)

// =============================================================================
// Backup and restore
// =============================================================================

func (s *WalletServiceSuite) TestBackupRoundTrip() {
	w := s.createWallet()
	s.unlock()
	vc := s.issueTo(w.PrimaryDID, map[string]any{"checkType": "enhanced", "checkStatus": "cleared"})
	s.Require().NoError(s.service.AddCredential(s.ctx, s.owner, vc))

	before, err := s.service.GetWallet(s.ctx, s.owner)
	s.Require().NoError(err)

	backup, err := s.service.CreateBackup(s.ctx, s.owner, passphrase)
	s.Require().NoError(err)
	s.Equal(models.BackupVersion, backup.Version)
	s.Equal(crypto.CipherXChaCha20Poly1305, backup.Encrypted.Cipher)
	s.Equal(crypto.KDFArgon2id, backup.Encrypted.KDF)
	s.NotContains(backup.Encrypted.Ciphertext, w.PrimaryDID)

	restored, err := s.service.RestoreFromBackup(s.at(time.Hour), s.owner, backup.ID, passphrase)
	s.Require().NoError(err)

	s.Equal(before.ID, restored.ID)
	s.Equal(before.PrimaryDID, restored.PrimaryDID)
	s.Equal(before.DIDs, restored.DIDs)
	s.Equal(before.KeyPairs, restored.KeyPairs)
	s.Require().Len(restored.Credentials, 1)
	s.Equal(vc.ID, restored.Credentials[0].ID)
	s.Equal(models.StatusActive, restored.Status)

	unlocked, err := s.service.IsWalletUnlocked(s.at(time.Hour), s.owner)
	s.Require().NoError(err)
	s.False(unlocked)

	_, err = s.service.UnlockWallet(s.at(time.Hour), s.owner, passphrase)
	s.Require().NoError(err)
	s.Len(s.events.ByTopic(events.WalletRecovered), 1)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Restores.WithLabelValues("success")))
}

func (s *WalletServiceSuite) TestRestoreRetiresKeysCreatedAfterBackup() {
	const (
		second = "second-passphrase-456"
		third  = "third-passphrase-789"
	)
	s.createWallet()
	backup, err := s.service.CreateBackup(s.ctx, s.owner, passphrase)
	s.Require().NoError(err)
	s.Require().NoError(s.service.ChangePassphrase(s.ctx, s.owner, passphrase, second))

	_, err = s.service.RestoreFromBackup(s.ctx, s.owner, backup.ID, passphrase)
	s.Require().NoError(err)

	keys, err := s.identity.ListKeyPairs(s.ctx, s.owner)
	s.Require().NoError(err)
	primaries := 0
	for _, k := range keys {
		if k.IsActive() && k.IsPrimary {
			primaries++
		}
	}
	s.Equal(1, primaries)

	_, err = s.service.UnlockWallet(s.ctx, s.owner, second)
	s.True(dErrors.HasCode(err, dErrors.CodeWallet), "key rotated after the backup must not unlock")

	s.Require().NoError(s.service.ChangePassphrase(s.ctx, s.owner, passphrase, third))
	_, err = s.service.UnlockWallet(s.ctx, s.owner, third)
	s.Require().NoError(err)
}

func (s *WalletServiceSuite) TestRestoreReactivatesDeactivatedWallet() {
	w := s.createWallet()
	backup, err := s.service.CreateBackup(s.ctx, s.owner, passphrase)
	s.Require().NoError(err)
	s.Require().NoError(s.service.DeactivateWallet(s.ctx, s.owner, passphrase, "lost device"))

	restored, err := s.service.RestoreFromBackup(s.ctx, s.owner, backup.ID, passphrase)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, restored.Status)

	did, err := s.identity.GetPrimaryDID(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(w.PrimaryDID, did.DID)
	s.True(did.IsActive())

	_, err = s.service.UnlockWallet(s.ctx, s.owner, passphrase)
	s.NoError(err)
}

func (s *WalletServiceSuite) TestRestoreClearsLockout() {
	s.createWallet()
	backup, err := s.service.CreateBackup(s.ctx, s.owner, passphrase)
	s.Require().NoError(err)

	for i := 0; i < 5; i++ {
		_, err := s.service.UnlockWallet(s.ctx, s.owner, wrongPassphrase)
		s.Require().Error(err)
	}
	_, err = s.service.RestoreFromBackup(s.ctx, s.owner, backup.ID, passphrase)
	s.Require().NoError(err)

	_, err = s.service.UnlockWallet(s.ctx, s.owner, passphrase)
	s.NoError(err)
}

func (s *WalletServiceSuite) TestRestoreFailures() {
	s.createWallet()
	backup, err := s.service.CreateBackup(s.ctx, s.owner, passphrase)
	s.Require().NoError(err)

	s.Run("wrong passphrase", func() {
		_, err := s.service.RestoreFromBackup(s.ctx, s.owner, backup.ID, wrongPassphrase)
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
		s.Equal("invalid passphrase or corrupted backup", err.Error())
	})

	s.Run("tampered ciphertext", func() {
		tampered := *backup
		tampered.ID = id.NewBackupID()
		raw, err := crypto.DecodeBase64URL(tampered.Encrypted.Ciphertext)
		s.Require().NoError(err)
		raw[0] ^= 0xff
		tampered.Encrypted.Ciphertext = crypto.EncodeBase64URL(raw)
		s.Require().NoError(s.backups.Save(s.ctx, &tampered))

		_, err = s.service.RestoreFromBackup(s.ctx, s.owner, tampered.ID, passphrase)
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
		s.Equal("invalid passphrase or corrupted backup", err.Error())
	})

	s.Run("checksum mismatch", func() {
		tampered := *backup
		tampered.ID = id.NewBackupID()
		tampered.Checksum = crypto.EncodeBase64URL(s.provider.SHA256([]byte("something else")))
		s.Require().NoError(s.backups.Save(s.ctx, &tampered))

		_, err := s.service.RestoreFromBackup(s.ctx, s.owner, tampered.ID, passphrase)
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
		s.Equal("invalid passphrase or corrupted backup", err.Error())
	})

	s.Run("unknown backup", func() {
		_, err := s.service.RestoreFromBackup(s.ctx, s.owner, id.NewBackupID(), passphrase)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("another owner's backup", func() {
		_, err := s.service.RestoreFromBackup(s.ctx, s.issuerOwner, backup.ID, passphrase)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Equal(5.0, testutil.ToFloat64(s.metrics.Restores.WithLabelValues("failure")))
}

func (s *WalletServiceSuite) TestCreateBackupRequiresPassphrase() {
	s.createWallet()

	_, err := s.service.CreateBackup(s.ctx, s.owner, wrongPassphrase)
	s.True(dErrors.HasCode(err, dErrors.CodeWallet))

	list, err := s.service.ListBackups(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *WalletServiceSuite) TestListAndLatestBackups() {
	s.createWallet()

	_, err := s.service.GetLatestBackup(s.ctx, s.owner)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	first, err := s.service.CreateBackup(s.ctx, s.owner, passphrase)
	s.Require().NoError(err)
	second, err := s.service.CreateBackup(s.at(time.Minute), s.owner, passphrase)
	s.Require().NoError(err)

	list, err := s.service.ListBackups(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)
	s.Equal(first.ID, list[1].ID)

	latest, err := s.service.GetLatestBackup(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
}
