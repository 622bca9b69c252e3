// Package store persists wallets and their encrypted backups.
// Implementations return sentinel errors.
package store

import (
	"context"

	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
)

// WalletStore holds at most one wallet per owner. Save fails with
// sentinel.ErrConflict when the owner already has one.
type WalletStore interface {
	Save(ctx context.Context, wallet *models.Wallet) error
	Update(ctx context.Context, wallet *models.Wallet) error
	FindByID(ctx context.Context, walletID id.WalletID) (*models.Wallet, error)
	FindByOwner(ctx context.Context, ownerID id.UserID) (*models.Wallet, error)
	DeleteByOwner(ctx context.Context, ownerID id.UserID) error
}

// BackupStore holds immutable backups.
type BackupStore interface {
	Save(ctx context.Context, backup *models.Backup) error
	FindByID(ctx context.Context, backupID id.BackupID) (*models.Backup, error)
	// FindLatest returns the owner's most recent backup.
	FindLatest(ctx context.Context, ownerID id.UserID) (*models.Backup, error)
	// ListByOwner returns backups newest first.
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Backup, error)
}
