package service

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"attesto/internal/events"
	idmodels "attesto/internal/identity/models"
	"attesto/internal/wallet/models"
	"attesto/internal/wallet/service/mocks"
	"attesto/internal/wallet/store"
	dErrors "attesto/pkg/domain-errors"
)

// =============================================================================
// Creation
// =============================================================================

func (s *WalletServiceSuite) TestCreateWallet() {
	s.Run("creates wallet around a primary DID", func() {
		w := s.createWallet()

		s.Equal(models.StatusActive, w.Status)
		s.Equal([]string{w.PrimaryDID}, w.DIDs)
		s.Require().Len(w.KeyPairs, 1)
		s.Equal(w.PrimaryDID, w.KeyPairs[0].DID)
		s.Equal(models.RecoveryBackup, w.RecoveryConfig.Method)

		primary, err := s.identity.GetPrimaryDID(s.ctx, s.owner)
		s.Require().NoError(err)
		s.Equal(w.PrimaryDID, primary.DID)
		s.Len(s.events.ByTopic(events.WalletCreated), 1)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.WalletsCreated))
	})

	s.Run("one wallet per owner", func() {
		_, err := s.service.CreateWallet(s.ctx, s.owner, passphrase, models.CreateOptions{})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *WalletServiceSuite) TestCreateWalletPassphrasePolicy() {
	_, err := s.service.CreateWallet(s.ctx, s.owner, "short", models.CreateOptions{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.GetWallet(s.ctx, s.owner)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	res, err := s.service.CreateWallet(s.ctx, s.owner, passphrase, models.CreateOptions{})
	s.Require().NoError(err)
	s.NotEmpty(res.Wallet.PrimaryDID)
}

func (s *WalletServiceSuite) TestCreateWalletOptions() {
	s.Run("backup on create", func() {
		backup := true
		res, err := s.service.CreateWallet(s.ctx, s.owner, passphrase, models.CreateOptions{
			Method: idmodels.MethodKey,
			Backup: &backup,
		})
		s.Require().NoError(err)
		s.Require().NotNil(res.Backup)
		s.Equal(res.Wallet.ID, res.Backup.WalletID)
	})

	s.Run("social recovery threshold bounds", func() {
		other := s.issuerOwner
		_, err := s.service.CreateWallet(s.ctx, other, passphrase, models.CreateOptions{
			RecoveryConfig: &models.RecoveryConfig{
				Method:    models.RecoverySocial,
				Threshold: 3,
				Guardians: []string{"did:key:zA", "did:key:zB"},
			},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Sessions
// =============================================================================

func (s *WalletServiceSuite) TestUnlockAndLock() {
	s.createWallet()

	unlocked, err := s.service.IsWalletUnlocked(s.ctx, s.owner)
	s.Require().NoError(err)
	s.False(unlocked)

	res, err := s.service.UnlockWallet(s.ctx, s.owner, passphrase)
	s.Require().NoError(err)
	s.Equal(s.now.Add(s.service.SessionTimeout()), res.ExpiresAt)

	unlocked, err = s.service.IsWalletUnlocked(s.ctx, s.owner)
	s.Require().NoError(err)
	s.True(unlocked)

	s.Require().NoError(s.service.LockWallet(s.ctx, s.owner))
	unlocked, err = s.service.IsWalletUnlocked(s.ctx, s.owner)
	s.Require().NoError(err)
	s.False(unlocked)

	s.Len(s.events.ByTopic(events.WalletUnlocked), 1)
	s.Len(s.events.ByTopic(events.WalletLocked), 1)
}

func (s *WalletServiceSuite) TestSessionExpires() {
	s.createWallet()
	s.unlock()

	unlocked, err := s.service.IsWalletUnlocked(s.at(14*time.Minute), s.owner)
	s.Require().NoError(err)
	s.True(unlocked)

	unlocked, err = s.service.IsWalletUnlocked(s.at(15*time.Minute), s.owner)
	s.Require().NoError(err)
	s.False(unlocked)

	_, err = s.service.GetCredentials(s.at(16*time.Minute), s.owner)
	s.True(dErrors.HasCode(err, dErrors.CodeWallet))
}

func (s *WalletServiceSuite) TestUnlockWrongPassphrase() {
	s.createWallet()

	_, err := s.service.UnlockWallet(s.ctx, s.owner, wrongPassphrase)
	s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Unlocks.WithLabelValues("failure")))

	unlocked, err := s.service.IsWalletUnlocked(s.ctx, s.owner)
	s.Require().NoError(err)
	s.False(unlocked)
}

// =============================================================================
// Lockout
// =============================================================================

func (s *WalletServiceSuite) TestLockout() {
	s.createWallet()

	for i := 0; i < 5; i++ {
		_, err := s.service.UnlockWallet(s.ctx, s.owner, wrongPassphrase)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeWallet), "attempt %d", i+1)
	}
	s.Equal(1.0, testutil.ToFloat64(s.metrics.LockoutsTriggered))

	s.Run("correct passphrase refused while locked out", func() {
		_, err := s.service.UnlockWallet(s.at(time.Minute), s.owner, passphrase)
		var lockoutErr *models.LockoutError
		s.Require().True(errors.As(err, &lockoutErr))
		s.Equal(s.now.Add(30*time.Minute), lockoutErr.UnlockAt)
		s.True(dErrors.HasCode(err, dErrors.CodeWalletLockedOut))
	})

	s.Run("unlocks after the window", func() {
		_, err := s.service.UnlockWallet(s.at(31*time.Minute), s.owner, passphrase)
		s.Require().NoError(err)
	})
}

func (s *WalletServiceSuite) TestSuccessfulUnlockResetsFailures() {
	s.createWallet()

	for i := 0; i < 4; i++ {
		_, err := s.service.UnlockWallet(s.ctx, s.owner, wrongPassphrase)
		s.Require().Error(err)
	}
	s.unlock()

	for i := 0; i < 4; i++ {
		_, err := s.service.UnlockWallet(s.ctx, s.owner, wrongPassphrase)
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	}
	_, err := s.service.UnlockWallet(s.ctx, s.owner, passphrase)
	s.NoError(err)
}

// =============================================================================
// Passphrase change and deactivation
// =============================================================================

func (s *WalletServiceSuite) TestChangePassphrase() {
	w := s.createWallet()
	s.unlock()
	newPassphrase := "another-secure-passphrase"

	s.Run("rejects wrong old passphrase", func() {
		err := s.service.ChangePassphrase(s.ctx, s.owner, wrongPassphrase, newPassphrase)
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	})

	s.Run("rejects weak new passphrase", func() {
		err := s.service.ChangePassphrase(s.ctx, s.owner, passphrase, "short")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rotates keys and ends the session", func() {
		s.Require().NoError(s.service.ChangePassphrase(s.ctx, s.owner, passphrase, newPassphrase))

		unlocked, err := s.service.IsWalletUnlocked(s.ctx, s.owner)
		s.Require().NoError(err)
		s.False(unlocked)

		_, err = s.service.UnlockWallet(s.ctx, s.owner, passphrase)
		s.True(dErrors.HasCode(err, dErrors.CodeWallet))
		_, err = s.service.UnlockWallet(s.ctx, s.owner, newPassphrase)
		s.Require().NoError(err)

		updated, err := s.service.GetWallet(s.ctx, s.owner)
		s.Require().NoError(err)
		s.NotEqual(w.KeyPairs[0].ID, activeKey(updated).ID)
	})
}

func (s *WalletServiceSuite) TestChangePassphraseChecksEveryDIDFirst() {
	w := s.createWallet()
	second, err := s.identity.CreateDID(s.ctx, s.owner, idmodels.MethodKey, "diverged-passphrase-42", idmodels.CreateOptions{})
	s.Require().NoError(err)
	stored, err := s.stores.Wallets.FindByOwner(s.ctx, s.owner)
	s.Require().NoError(err)
	stored.DIDs = append(stored.DIDs, second.DID.DID)
	s.Require().NoError(s.stores.Wallets.Update(s.ctx, stored))

	before, err := s.identity.ListKeyPairs(s.ctx, s.owner)
	s.Require().NoError(err)

	err = s.service.ChangePassphrase(s.ctx, s.owner, passphrase, "another-secure-passphrase")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	s.Contains(err.Error(), second.DID.DID)

	after, err := s.identity.ListKeyPairs(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Len(after, len(before), "no DID may be rotated")
	s.Require().NoError(s.identity.CheckPassphrase(s.ctx, s.owner, w.PrimaryDID, passphrase))
	_, err = s.service.UnlockWallet(s.ctx, s.owner, passphrase)
	s.Require().NoError(err)
}

func activeKey(w *models.Wallet) models.KeyRef {
	for _, k := range w.KeyPairs {
		if k.Status == idmodels.StatusActive {
			return k
		}
	}
	return models.KeyRef{}
}

func (s *WalletServiceSuite) TestDeactivateWallet() {
	w := s.createWallet()
	s.unlock()

	err := s.service.DeactivateWallet(s.ctx, s.owner, wrongPassphrase, "lost device")
	s.True(dErrors.HasCode(err, dErrors.CodeWallet))

	s.Require().NoError(s.service.DeactivateWallet(s.ctx, s.owner, passphrase, "lost device"))

	got, err := s.service.GetWallet(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(models.StatusDeactivated, got.Status)
	s.NotNil(got.DeactivatedAt)

	did, err := s.identity.GetPrimaryDID(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(w.PrimaryDID, did.DID)
	s.False(did.IsActive())

	_, err = s.service.UnlockWallet(s.ctx, s.owner, passphrase)
	s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	err = s.service.DeactivateWallet(s.ctx, s.owner, passphrase, "again")
	s.True(dErrors.HasCode(err, dErrors.CodeWallet))
	s.Len(s.events.ByTopic(events.WalletDeactivated), 1)
}

// =============================================================================
// Failure containment
// =============================================================================

func (s *WalletServiceSuite) TestPanicBecomesInternalError() {
	ctrl := gomock.NewController(s.T())
	identity := mocks.NewMockIdentity(ctrl)
	identity.EXPECT().ValidatePassphrase(gomock.Any()).DoAndReturn(func(string) error {
		panic("key store exploded")
	})

	svc, err := New(identity, s.provider, s.stores, s.lockouts, WithLogger(discardLogger()))
	s.Require().NoError(err)

	_, err = svc.CreateWallet(s.ctx, s.owner, passphrase, models.CreateOptions{})
	s.Require().Error(err)
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
	s.NotContains(err.Error(), "key store exploded")
}

// flakyWalletStore fails Save until failures runs out.
type flakyWalletStore struct {
	store.WalletStore
	failures int
}

func (f *flakyWalletStore) Save(ctx context.Context, w *models.Wallet) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset")
	}
	return f.WalletStore.Save(ctx, w)
}

func (s *WalletServiceSuite) TestCreateWalletDiscardsDIDWhenSaveFails() {
	s.stores.Wallets = &flakyWalletStore{WalletStore: s.stores.Wallets, failures: 1}
	svc := s.newService()

	_, err := svc.CreateWallet(s.ctx, s.owner, passphrase, models.CreateOptions{})
	s.Require().Error(err)
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))

	dids, err := s.identity.ListDIDs(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(dids, 1)
	s.False(dids[0].IsActive())
	s.False(dids[0].IsPrimary)

	res, err := svc.CreateWallet(s.ctx, s.owner, passphrase, models.CreateOptions{})
	s.Require().NoError(err)
	s.NotEqual(dids[0].DID, res.Wallet.PrimaryDID)

	primary, err := s.identity.GetPrimaryDID(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(res.Wallet.PrimaryDID, primary.DID)
}

func (s *WalletServiceSuite) TestIdentityFailureIsInternal() {
	ctrl := gomock.NewController(s.T())
	identity := mocks.NewMockIdentity(ctrl)
	svc, err := New(identity, s.provider, s.stores, s.lockouts, WithLogger(discardLogger()))
	s.Require().NoError(err)

	identity.EXPECT().ValidatePassphrase(passphrase).Return(nil)
	identity.EXPECT().CreateDID(gomock.Any(), s.owner, idmodels.MethodKey, passphrase, gomock.Any()).
		Return(nil, errors.New("disk full"))

	_, err = svc.CreateWallet(s.ctx, s.owner, passphrase, models.CreateOptions{})
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
	s.Equal("failed to create DID", err.Error())
}
