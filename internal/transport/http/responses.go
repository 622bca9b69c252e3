package httptransport

import (
	"time"

	idmodels "attesto/internal/identity/models"
	"attesto/internal/wallet/models"
)

type WalletResponse struct {
	ID              string    `json:"id"`
	PrimaryDID      string    `json:"primary_did"`
	DIDs            []string  `json:"dids"`
	Status          string    `json:"status"`
	CredentialCount int       `json:"credential_count"`
	RecoveryMethod  string    `json:"recovery_method"`
	CreatedAt       time.Time `json:"created_at"`
	LastAccessedAt  time.Time `json:"last_accessed_at"`
}

type CreateWalletResponse struct {
	Wallet   WalletResponse `json:"wallet"`
	BackupID string         `json:"backup_id,omitempty"`
}

type UnlockResponse struct {
	WalletID  string    `json:"wallet_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type StatusResponse struct {
	WalletID   string `json:"wallet_id"`
	Status     string `json:"status"`
	Unlocked   bool   `json:"unlocked"`
	PrimaryDID string `json:"primary_did"`
}

// BackupResponse describes a backup without its sealed payload.
type BackupResponse struct {
	ID        string    `json:"id"`
	WalletID  string    `json:"wallet_id"`
	Version   int       `json:"version"`
	Cipher    string    `json:"cipher"`
	KDF       string    `json:"kdf"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

type DIDResolutionResponse struct {
	DIDDocument *idmodels.Document  `json:"didDocument"`
	Metadata    DIDDocumentMetadata `json:"didDocumentMetadata"`
}

type DIDDocumentMetadata struct {
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	Deactivated bool      `json:"deactivated,omitempty"`
}

func toWalletResponse(w *models.Wallet) WalletResponse {
	dids := w.DIDs
	if dids == nil {
		dids = []string{}
	}
	return WalletResponse{
		ID:              w.ID.String(),
		PrimaryDID:      w.PrimaryDID,
		DIDs:            dids,
		Status:          string(w.Status),
		CredentialCount: len(w.Credentials),
		RecoveryMethod:  string(w.RecoveryConfig.Method),
		CreatedAt:       w.CreatedAt,
		LastAccessedAt:  w.LastAccessedAt,
	}
}

func toBackupResponse(b *models.Backup) BackupResponse {
	return BackupResponse{
		ID:        b.ID.String(),
		WalletID:  b.WalletID.String(),
		Version:   b.Version,
		Cipher:    b.Encrypted.Cipher,
		KDF:       b.Encrypted.KDF,
		Checksum:  b.Checksum,
		CreatedAt: b.CreatedAt,
	}
}
