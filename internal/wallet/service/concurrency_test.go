package service

import (
	"errors"
	"sync/atomic"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"attesto/internal/wallet/models"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/testutil"
)

// =============================================================================
// Concurrency
// =============================================================================

func (s *WalletServiceSuite) TestConcurrentCreateWalletYieldsOneWallet() {
	const callers = 8

	result := testutil.RunConcurrent(callers, func(int) error {
		_, err := s.service.CreateWallet(s.ctx, s.owner, passphrase, models.CreateOptions{})
		return err
	})

	s.EqualValues(1, result.Successes)
	s.EqualValues(callers-1, result.Conflicts)
	s.Zero(result.Errors)

	dids, err := s.identity.ListDIDs(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Len(dids, 1, "losing callers must not leave DIDs behind")
}

func (s *WalletServiceSuite) TestConcurrentWrongUnlocksTripLockoutOnce() {
	s.createWallet()
	const callers = 12
	var invalid, lockedOut atomic.Int32

	result := testutil.RunConcurrent(callers, func(int) error {
		_, err := s.service.UnlockWallet(s.ctx, s.owner, wrongPassphrase)
		var lockoutErr *models.LockoutError
		switch {
		case errors.As(err, &lockoutErr):
			lockedOut.Add(1)
		case dErrors.HasCode(err, dErrors.CodeWallet):
			invalid.Add(1)
		}
		return err
	})

	s.Zero(result.Successes)
	s.EqualValues(5, invalid.Load(), "exactly MaxAttempts failures are counted")
	s.EqualValues(callers-5, lockedOut.Load())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.LockoutsTriggered))

	_, err := s.service.UnlockWallet(s.ctx, s.owner, passphrase)
	s.True(dErrors.HasCode(err, dErrors.CodeWalletLockedOut))
}

func (s *WalletServiceSuite) TestConcurrentUnlockAndLockLeaveConsistentSession() {
	s.createWallet()

	result := testutil.RunConcurrent(10, func(i int) error {
		if i%2 == 0 {
			_, err := s.service.UnlockWallet(s.ctx, s.owner, passphrase)
			return err
		}
		return s.service.LockWallet(s.ctx, s.owner)
	})
	s.EqualValues(10, result.Successes)

	s.unlock()
	unlocked, err := s.service.IsWalletUnlocked(s.ctx, s.owner)
	s.Require().NoError(err)
	s.True(unlocked)
}
