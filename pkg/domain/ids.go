// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "attesto/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a WalletID where a UserID is expected.
type (
	UserID   uuid.UUID
	WalletID uuid.UUID
	BackupID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseWalletID(s string) (WalletID, error) {
	id, err := parseUUID(s, "wallet ID")
	return WalletID(id), err
}

func ParseBackupID(s string) (BackupID, error) {
	id, err := parseUUID(s, "backup ID")
	return BackupID(id), err
}

// Constructors for freshly minted identifiers.

func NewWalletID() WalletID { return WalletID(uuid.New()) }
func NewBackupID() BackupID { return BackupID(uuid.New()) }

// String methods - for logging and debugging.

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id WalletID) String() string { return uuid.UUID(id).String() }
func (id BackupID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id WalletID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BackupID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic. Nil UUIDs are rejected here so
// they never reach a store lookup.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, label+" cannot be nil")
	}
	return id, nil
}

// Text marshalling - JSON payloads and backups carry the canonical UUID string.

func (id UserID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id WalletID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id BackupID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *WalletID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *BackupID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
