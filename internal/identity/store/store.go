// Package store persists DIDs, DID documents and encrypted key pairs.
// Implementations return sentinel errors; the identity service translates them.
package store

import (
	"context"

	"attesto/internal/identity/models"
	id "attesto/pkg/domain"
)

// DIDStore persists DID records. Save fails with sentinel.ErrConflict when the
// DID already exists or the owner already has a primary DID.
type DIDStore interface {
	Save(ctx context.Context, did *models.DID) error
	Update(ctx context.Context, did *models.DID) error
	FindByDID(ctx context.Context, did string) (*models.DID, error)
	FindByOwner(ctx context.Context, ownerID id.UserID) ([]*models.DID, error)
	FindPrimary(ctx context.Context, ownerID id.UserID) (*models.DID, error)
}

// DocumentStore persists DID documents keyed by DID.
type DocumentStore interface {
	Save(ctx context.Context, doc *models.Document) error
	Find(ctx context.Context, did string) (*models.Document, error)
}

// KeyStore persists key pairs. Private keys only appear in encrypted form.
type KeyStore interface {
	Save(ctx context.Context, key *models.KeyPair) error
	Update(ctx context.Context, key *models.KeyPair) error
	FindByID(ctx context.Context, keyID string) (*models.KeyPair, error)
	FindByDID(ctx context.Context, did string) ([]*models.KeyPair, error)
	FindByOwner(ctx context.Context, ownerID id.UserID) ([]*models.KeyPair, error)
}
