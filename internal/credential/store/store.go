// Package store persists credentials, revocations, status lists, schemas and
// presentations. Implementations return sentinel errors.
package store

import (
	"context"
	"time"

	"attesto/internal/credential/models"
)

// CredentialStore persists signed credentials. Save fails with
// sentinel.ErrConflict for a duplicate id.
type CredentialStore interface {
	Save(ctx context.Context, vc *models.VerifiableCredential) error
	FindByID(ctx context.Context, credentialID string) (*models.VerifiableCredential, error)
	FindByHolder(ctx context.Context, holderDID string) ([]*models.VerifiableCredential, error)
	FindByType(ctx context.Context, credentialType string) ([]*models.VerifiableCredential, error)
	FindByIssuer(ctx context.Context, issuerDID string) ([]*models.VerifiableCredential, error)
	Delete(ctx context.Context, credentialID string) error
}

// RevocationStore records revocations keyed by credential id.
type RevocationStore interface {
	IsRevoked(ctx context.Context, credentialID string) (bool, error)
	// Revoke reports false when the credential was already revoked.
	Revoke(ctx context.Context, entry *models.RevocationEntry) (bool, error)
	GetStatus(ctx context.Context, credentialID string) (*models.RevocationEntry, error)
}

// StatusListRecord is the stored state of one status list.
type StatusListRecord struct {
	ID        string
	Length    uint
	NextIndex uint
	Bits      []byte
	UpdatedAt time.Time
}

// StatusListStore hands out indices and flips bits. Allocate returns
// strictly increasing indices per list and sentinel.ErrInvalidState once
// the list is full.
type StatusListStore interface {
	Allocate(ctx context.Context, listID string, length uint) (uint, error)
	SetBit(ctx context.Context, listID string, index uint, at time.Time) error
	Get(ctx context.Context, listID string) (*StatusListRecord, error)
}

// SchemaStore persists credential schemas.
type SchemaStore interface {
	Save(ctx context.Context, schema *models.Schema) error
	FindByID(ctx context.Context, schemaID string) (*models.Schema, error)
	FindDefaultForType(ctx context.Context, credentialType string) (*models.Schema, error)
	FindByJurisdiction(ctx context.Context, jurisdiction string) ([]*models.Schema, error)
}

// PresentationStore persists created presentations.
type PresentationStore interface {
	Save(ctx context.Context, vp *models.VerifiablePresentation) error
	FindByID(ctx context.Context, presentationID string) (*models.VerifiablePresentation, error)
	FindByHolder(ctx context.Context, holderDID string) ([]*models.VerifiablePresentation, error)
}
