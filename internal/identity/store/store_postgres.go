package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"attesto/internal/identity/models"
	"attesto/internal/platform/database"
	id "attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

// PostgresDIDStore persists DID records in PostgreSQL. The one-primary-per-owner
// rule is enforced by a partial unique index.
type PostgresDIDStore struct {
	db *sql.DB
}

func NewPostgresDIDStore(db *sql.DB) *PostgresDIDStore {
	return &PostgresDIDStore{db: db}
}

const didColumns = `did, method, owner_id, controller, status, is_primary, created_at, updated_at, deactivated_at, reason`

func (s *PostgresDIDStore) Save(ctx context.Context, did *models.DID) error {
	query := `
		INSERT INTO identity_dids (` + didColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		did.DID, string(did.Method), did.OwnerID.String(), did.Controller, string(did.Status),
		did.IsPrimary, did.CreatedAt, did.UpdatedAt, did.DeactivatedAt, did.Reason,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save did: %w", err)
	}
	return nil
}

func (s *PostgresDIDStore) Update(ctx context.Context, did *models.DID) error {
	query := `
		UPDATE identity_dids
		SET controller = $2, status = $3, is_primary = $4, updated_at = $5, deactivated_at = $6, reason = $7
		WHERE did = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		did.DID, did.Controller, string(did.Status), did.IsPrimary, did.UpdatedAt, did.DeactivatedAt, did.Reason,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update did: %w", err)
	}
	return requireAffected(res, "update did")
}

func (s *PostgresDIDStore) FindByDID(ctx context.Context, did string) (*models.DID, error) {
	query := `SELECT ` + didColumns + ` FROM identity_dids WHERE did = $1`
	d, err := scanDID(s.db.QueryRowContext(ctx, query, did))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find did: %w", err)
	}
	return d, nil
}

func (s *PostgresDIDStore) FindByOwner(ctx context.Context, ownerID id.UserID) ([]*models.DID, error) {
	query := `SELECT ` + didColumns + ` FROM identity_dids WHERE owner_id = $1 ORDER BY created_at, did`
	rows, err := s.db.QueryContext(ctx, query, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("find dids by owner: %w", err)
	}
	defer rows.Close()

	var out []*models.DID
	for rows.Next() {
		d, err := scanDID(rows)
		if err != nil {
			return nil, fmt.Errorf("scan did: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dids: %w", err)
	}
	return out, nil
}

func (s *PostgresDIDStore) FindPrimary(ctx context.Context, ownerID id.UserID) (*models.DID, error) {
	query := `SELECT ` + didColumns + ` FROM identity_dids WHERE owner_id = $1 AND is_primary`
	d, err := scanDID(s.db.QueryRowContext(ctx, query, ownerID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find primary did: %w", err)
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDID(row rowScanner) (*models.DID, error) {
	var d models.DID
	var ownerID string
	var deactivatedAt sql.NullTime
	if err := row.Scan(&d.DID, &d.Method, &ownerID, &d.Controller, &d.Status, &d.IsPrimary,
		&d.CreatedAt, &d.UpdatedAt, &deactivatedAt, &d.Reason); err != nil {
		return nil, err
	}
	owner, err := id.ParseUserID(ownerID)
	if err != nil {
		return nil, fmt.Errorf("parse did owner: %w", err)
	}
	d.OwnerID = owner
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		d.DeactivatedAt = &t
	}
	return &d, nil
}

// PostgresDocumentStore persists DID documents as JSONB.
type PostgresDocumentStore struct {
	db *sql.DB
}

func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

func (s *PostgresDocumentStore) Save(ctx context.Context, doc *models.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal did document: %w", err)
	}
	query := `
		INSERT INTO identity_documents (did, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (did) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, doc.ID, body, doc.Updated); err != nil {
		return fmt.Errorf("save did document: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) Find(ctx context.Context, did string) (*models.Document, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM identity_documents WHERE did = $1`, did).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find did document: %w", err)
	}
	var doc models.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal did document: %w", err)
	}
	return &doc, nil
}

// PostgresKeyStore persists key pairs. The encrypted blob is stored as JSONB.
type PostgresKeyStore struct {
	db *sql.DB
}

func NewPostgresKeyStore(db *sql.DB) *PostgresKeyStore {
	return &PostgresKeyStore{db: db}
}

const keyColumns = `id, did, owner_id, scheme, public_key_multibase, encrypted_private_key,
	verification_method_id, purposes, is_primary, status, created_at, revoked_at, revocation_reason`

func (s *PostgresKeyStore) Save(ctx context.Context, key *models.KeyPair) error {
	blob, err := json.Marshal(key.EncryptedPrivateKey)
	if err != nil {
		return fmt.Errorf("marshal encrypted key: %w", err)
	}
	query := `
		INSERT INTO identity_key_pairs (` + keyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		key.ID, key.DID, key.OwnerID.String(), string(key.Scheme), key.PublicKeyMultibase, blob,
		key.VerificationMethodID, pq.Array(purposeStrings(key.Purposes)), key.IsPrimary, string(key.Status),
		key.CreatedAt, key.RevokedAt, key.RevocationReason,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save key pair: %w", err)
	}
	return nil
}

func (s *PostgresKeyStore) Update(ctx context.Context, key *models.KeyPair) error {
	blob, err := json.Marshal(key.EncryptedPrivateKey)
	if err != nil {
		return fmt.Errorf("marshal encrypted key: %w", err)
	}
	query := `
		UPDATE identity_key_pairs
		SET encrypted_private_key = $2, purposes = $3, is_primary = $4, status = $5,
			revoked_at = $6, revocation_reason = $7
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		key.ID, blob, pq.Array(purposeStrings(key.Purposes)), key.IsPrimary, string(key.Status),
		key.RevokedAt, key.RevocationReason,
	)
	if err != nil {
		return fmt.Errorf("update key pair: %w", err)
	}
	return requireAffected(res, "update key pair")
}

func (s *PostgresKeyStore) FindByID(ctx context.Context, keyID string) (*models.KeyPair, error) {
	query := `SELECT ` + keyColumns + ` FROM identity_key_pairs WHERE id = $1`
	k, err := scanKey(s.db.QueryRowContext(ctx, query, keyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find key pair: %w", err)
	}
	return k, nil
}

func (s *PostgresKeyStore) FindByDID(ctx context.Context, did string) ([]*models.KeyPair, error) {
	query := `SELECT ` + keyColumns + ` FROM identity_key_pairs WHERE did = $1 ORDER BY created_at, id`
	return s.query(ctx, query, did)
}

func (s *PostgresKeyStore) FindByOwner(ctx context.Context, ownerID id.UserID) ([]*models.KeyPair, error) {
	query := `SELECT ` + keyColumns + ` FROM identity_key_pairs WHERE owner_id = $1 ORDER BY created_at, id`
	return s.query(ctx, query, ownerID.String())
}

func (s *PostgresKeyStore) query(ctx context.Context, query string, arg any) ([]*models.KeyPair, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query key pairs: %w", err)
	}
	defer rows.Close()

	var out []*models.KeyPair
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key pair: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate key pairs: %w", err)
	}
	return out, nil
}

func scanKey(row rowScanner) (*models.KeyPair, error) {
	var k models.KeyPair
	var ownerID string
	var blob []byte
	var purposes []string
	var revokedAt sql.NullTime
	if err := row.Scan(&k.ID, &k.DID, &ownerID, &k.Scheme, &k.PublicKeyMultibase, &blob,
		&k.VerificationMethodID, pq.Array(&purposes), &k.IsPrimary, &k.Status,
		&k.CreatedAt, &revokedAt, &k.RevocationReason); err != nil {
		return nil, err
	}
	owner, err := id.ParseUserID(ownerID)
	if err != nil {
		return nil, fmt.Errorf("parse key owner: %w", err)
	}
	k.OwnerID = owner
	if err := json.Unmarshal(blob, &k.EncryptedPrivateKey); err != nil {
		return nil, fmt.Errorf("unmarshal encrypted key: %w", err)
	}
	for _, p := range purposes {
		k.Purposes = append(k.Purposes, models.Purpose(p))
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		k.RevokedAt = &t
	}
	return &k, nil
}

func purposeStrings(purposes []models.Purpose) []string {
	out := make([]string, len(purposes))
	for i, p := range purposes {
		out[i] = string(p)
	}
	return out
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
