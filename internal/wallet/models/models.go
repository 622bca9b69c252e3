// Package models defines the wallet record, its encrypted backups and the
// unlock session.
package models

import (
	"fmt"
	"time"

	credmodels "attesto/internal/credential/models"
	"attesto/internal/crypto"
	idmodels "attesto/internal/identity/models"
	id "attesto/pkg/domain"
	dErrors "attesto/pkg/domain-errors"
)

// Status is the persisted wallet lifecycle state. Deactivated is terminal.
type Status string

const (
	StatusActive      Status = "active"
	StatusLocked      Status = "locked"
	StatusDeactivated Status = "deactivated"
)

// RecoveryMethod names how a locked wallet is recovered.
type RecoveryMethod string

const (
	RecoveryBackup RecoveryMethod = "backup"
	RecoverySocial RecoveryMethod = "social"
)

// RecoveryConfig is persisted and carried in backups. Guardians are DIDs.
type RecoveryConfig struct {
	Method    RecoveryMethod `json:"method"`
	Threshold int            `json:"threshold,omitempty"`
	Guardians []string       `json:"guardians,omitempty"`
}

// KeyRef is the wallet's view of a key pair held by the identity manager.
type KeyRef struct {
	ID                   string          `json:"id"`
	DID                  string          `json:"did"`
	Scheme               crypto.Scheme   `json:"scheme"`
	PublicKeyMultibase   string          `json:"publicKeyMultibase"`
	VerificationMethodID string          `json:"verificationMethodId"`
	Status               idmodels.Status `json:"status"`
}

// Wallet is the persisted vault record.
type Wallet struct {
	ID             id.WalletID                       `json:"id"`
	OwnerID        id.UserID                         `json:"ownerId"`
	PrimaryDID     string                            `json:"primaryDid"`
	DIDs           []string                          `json:"dids"`
	KeyPairs       []KeyRef                          `json:"keyPairs"`
	Credentials    []credmodels.VerifiableCredential `json:"credentials"`
	Presentations  []string                          `json:"presentations,omitempty"`
	RecoveryConfig RecoveryConfig                    `json:"recoveryConfig"`
	Status         Status                            `json:"status"`
	CreatedAt      time.Time                         `json:"createdAt"`
	UpdatedAt      time.Time                         `json:"updatedAt"`
	LastAccessedAt time.Time                         `json:"lastAccessedAt"`
	DeactivatedAt  *time.Time                        `json:"deactivatedAt,omitempty"`
}

// HasCredential reports whether a credential with credentialID is held.
func (w *Wallet) HasCredential(credentialID string) bool {
	for i := range w.Credentials {
		if w.Credentials[i].ID == credentialID {
			return true
		}
	}
	return false
}

// OwnsDID reports whether did belongs to the wallet.
func (w *Wallet) OwnsDID(did string) bool {
	for _, d := range w.DIDs {
		if d == did {
			return true
		}
	}
	return false
}

// BackupVersion is the payload layout version written by CreateBackup.
const BackupVersion = 1

// Backup is an encrypted snapshot of a wallet. Checksum is the base64url
// SHA-256 of the plaintext payload.
type Backup struct {
	ID        id.BackupID          `json:"id"`
	OwnerID   id.UserID            `json:"ownerId"`
	WalletID  id.WalletID          `json:"walletId"`
	Version   int                  `json:"version"`
	Encrypted crypto.EncryptedBlob `json:"encrypted"`
	Checksum  string               `json:"checksum"`
	CreatedAt time.Time            `json:"createdAt"`
}

// BackupPayload is the plaintext sealed into a Backup. Presentations are not
// carried.
type BackupPayload struct {
	Version        int                               `json:"version"`
	WalletID       id.WalletID                       `json:"walletId"`
	OwnerID        id.UserID                         `json:"ownerId"`
	PrimaryDID     string                            `json:"primaryDid"`
	DIDs           []*idmodels.DID                   `json:"dids"`
	KeyPairs       []*idmodels.KeyPair               `json:"keyPairs"`
	Credentials    []credmodels.VerifiableCredential `json:"credentials"`
	RecoveryConfig RecoveryConfig                    `json:"recoveryConfig"`
	CreatedAt      time.Time                         `json:"createdAt"`
	UpdatedAt      time.Time                         `json:"updatedAt"`
}

// Session is the ephemeral unlock state. Only a digest of the session key is
// kept so the record can live in a shared store.
type Session struct {
	WalletID  id.WalletID `json:"walletId"`
	OwnerID   id.UserID   `json:"ownerId"`
	Salt      string      `json:"salt"`
	KeyDigest string      `json:"keyDigest"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// IsExpired reports whether the session has passed its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// CreateOptions tunes wallet creation.
type CreateOptions struct {
	Method         idmodels.Method
	Scheme         crypto.Scheme
	RecoveryConfig *RecoveryConfig
	// Backup forces an immediate backup; nil uses the service default.
	Backup *bool
}

// CreateResult is returned by CreateWallet.
type CreateResult struct {
	Wallet *Wallet
	Backup *Backup
}

// UnlockResult is returned by UnlockWallet.
type UnlockResult struct {
	WalletID  id.WalletID
	ExpiresAt time.Time
}

// LockoutError is returned while unlocks are blocked. It unwraps to a domain
// error with CodeWalletLockedOut.
type LockoutError struct {
	UnlockAt time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("wallet is locked out until %s", e.UnlockAt.UTC().Format(time.RFC3339))
}

// RetryAt reports when an unlock may be attempted again.
func (e *LockoutError) RetryAt() time.Time { return e.UnlockAt }

func (e *LockoutError) Unwrap() error {
	return &dErrors.Error{Code: dErrors.CodeWalletLockedOut, Message: e.Error()}
}

// PresentResult is returned by PresentCredentials.
type PresentResult struct {
	Presentation *credmodels.VerifiablePresentation
	Matches      []string
}
