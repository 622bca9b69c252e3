package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"attesto/internal/credential/models"
	"attesto/internal/credential/statuslist"
	"attesto/internal/platform/database"
	"attesto/pkg/platform/sentinel"
)

// PostgresCredentialStore keeps the signed credential as JSONB next to the
// columns it is queried by.
type PostgresCredentialStore struct {
	db *sql.DB
}

func NewPostgresCredentialStore(db *sql.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

func (s *PostgresCredentialStore) Save(ctx context.Context, vc *models.VerifiableCredential) error {
	doc, err := json.Marshal(vc)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	query := `
		INSERT INTO credentials (id, holder_did, issuer_did, types, issued_at, document)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query, vc.ID, vc.SubjectID(), vc.Issuer.ID, pq.Array(vc.Type), vc.IssuanceDate, doc)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *PostgresCredentialStore) FindByID(ctx context.Context, credentialID string) (*models.VerifiableCredential, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM credentials WHERE id = $1`, credentialID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return decodeJSON[models.VerifiableCredential](doc)
}

func (s *PostgresCredentialStore) FindByHolder(ctx context.Context, holderDID string) ([]*models.VerifiableCredential, error) {
	return s.list(ctx, `SELECT document FROM credentials WHERE holder_did = $1 ORDER BY issued_at, id`, holderDID)
}

func (s *PostgresCredentialStore) FindByType(ctx context.Context, credentialType string) ([]*models.VerifiableCredential, error) {
	return s.list(ctx, `SELECT document FROM credentials WHERE $1 = ANY(types) ORDER BY issued_at, id`, credentialType)
}

func (s *PostgresCredentialStore) FindByIssuer(ctx context.Context, issuerDID string) ([]*models.VerifiableCredential, error) {
	return s.list(ctx, `SELECT document FROM credentials WHERE issuer_did = $1 ORDER BY issued_at, id`, issuerDID)
}

func (s *PostgresCredentialStore) Delete(ctx context.Context, credentialID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1`, credentialID)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential: rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresCredentialStore) list(ctx context.Context, query string, arg any) ([]*models.VerifiableCredential, error) {
	return queryJSON[models.VerifiableCredential](ctx, s.db, query, arg)
}

// PostgresRevocationStore records revocations; the primary key on
// credential_id makes Revoke idempotent.
type PostgresRevocationStore struct {
	db *sql.DB
}

func NewPostgresRevocationStore(db *sql.DB) *PostgresRevocationStore {
	return &PostgresRevocationStore{db: db}
}

func (s *PostgresRevocationStore) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM credential_revocations WHERE credential_id = $1)`, credentialID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return exists, nil
}

func (s *PostgresRevocationStore) Revoke(ctx context.Context, entry *models.RevocationEntry) (bool, error) {
	var statusIndex sql.NullInt64
	if entry.StatusIndex != nil {
		statusIndex = sql.NullInt64{Int64: int64(*entry.StatusIndex), Valid: true}
	}
	query := `
		INSERT INTO credential_revocations (credential_id, reason, revoked_by, revoked_at, status_list_id, status_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (credential_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		entry.CredentialID, entry.Reason, entry.RevokedBy, entry.RevokedAt, entry.StatusListID, statusIndex,
	)
	if err != nil {
		return false, fmt.Errorf("revoke credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke credential: rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresRevocationStore) GetStatus(ctx context.Context, credentialID string) (*models.RevocationEntry, error) {
	query := `
		SELECT credential_id, reason, revoked_by, revoked_at, status_list_id, status_index
		FROM credential_revocations
		WHERE credential_id = $1
	`
	var e models.RevocationEntry
	var statusIndex sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, credentialID).Scan(
		&e.CredentialID, &e.Reason, &e.RevokedBy, &e.RevokedAt, &e.StatusListID, &statusIndex,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get revocation: %w", err)
	}
	if statusIndex.Valid {
		idx := uint(statusIndex.Int64)
		e.StatusIndex = &idx
	}
	return &e, nil
}

// PostgresStatusListStore allocates indices with a single conditional
// UPDATE ... RETURNING, so concurrent issuers never share an index.
type PostgresStatusListStore struct {
	db *sql.DB
}

func NewPostgresStatusListStore(db *sql.DB) *PostgresStatusListStore {
	return &PostgresStatusListStore{db: db}
}

func (s *PostgresStatusListStore) Allocate(ctx context.Context, listID string, length uint) (uint, error) {
	if length == 0 {
		length = statuslist.DefaultLength
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credential_status_lists (id, length, next_index, bits, updated_at)
		VALUES ($1, $2, 0, $3, now())
		ON CONFLICT (id) DO NOTHING
	`, listID, int64(length), make([]byte, (length+7)/8))
	if err != nil {
		return 0, fmt.Errorf("create status list: %w", err)
	}

	var idx int64
	err = s.db.QueryRowContext(ctx, `
		UPDATE credential_status_lists
		SET next_index = next_index + 1
		WHERE id = $1 AND next_index < length
		RETURNING next_index - 1
	`, listID).Scan(&idx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrInvalidState
		}
		return 0, fmt.Errorf("allocate status index: %w", err)
	}
	return uint(idx), nil
}

func (s *PostgresStatusListStore) SetBit(ctx context.Context, listID string, index uint, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status list update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var bits []byte
	var length int64
	err = tx.QueryRowContext(ctx,
		`SELECT bits, length FROM credential_status_lists WHERE id = $1 FOR UPDATE`, listID,
	).Scan(&bits, &length)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("load status list: %w", err)
	}
	list, err := statuslist.FromBytes(bits, uint(length))
	if err != nil {
		return fmt.Errorf("decode status list: %w", err)
	}
	if err := list.Set(index); err != nil {
		return sentinel.ErrInvalidState
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE credential_status_lists SET bits = $2, updated_at = $3 WHERE id = $1`,
		listID, list.Bytes(), at,
	); err != nil {
		return fmt.Errorf("save status list: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status list: %w", err)
	}
	return nil
}

func (s *PostgresStatusListStore) Get(ctx context.Context, listID string) (*StatusListRecord, error) {
	var r StatusListRecord
	var length, next int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, length, next_index, bits, updated_at FROM credential_status_lists WHERE id = $1`, listID,
	).Scan(&r.ID, &length, &next, &r.Bits, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get status list: %w", err)
	}
	r.Length = uint(length)
	r.NextIndex = uint(next)
	return &r, nil
}

// PostgresSchemaStore persists schemas as JSONB.
type PostgresSchemaStore struct {
	db *sql.DB
}

func NewPostgresSchemaStore(db *sql.DB) *PostgresSchemaStore {
	return &PostgresSchemaStore{db: db}
}

func (s *PostgresSchemaStore) Save(ctx context.Context, schema *models.Schema) error {
	doc, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	query := `
		INSERT INTO credential_schemas (id, credential_type, jurisdiction, is_default, created_at, document)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			credential_type = EXCLUDED.credential_type,
			jurisdiction = EXCLUDED.jurisdiction,
			is_default = EXCLUDED.is_default,
			document = EXCLUDED.document
	`
	if _, err := s.db.ExecContext(ctx, query,
		schema.ID, schema.CredentialType, schema.Jurisdiction, schema.IsDefault, schema.CreatedAt, doc,
	); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	return nil
}

func (s *PostgresSchemaStore) FindByID(ctx context.Context, schemaID string) (*models.Schema, error) {
	return s.one(ctx, `SELECT document FROM credential_schemas WHERE id = $1`, schemaID)
}

func (s *PostgresSchemaStore) FindDefaultForType(ctx context.Context, credentialType string) (*models.Schema, error) {
	return s.one(ctx, `
		SELECT document FROM credential_schemas
		WHERE credential_type = $1 AND is_default
		ORDER BY created_at DESC
		LIMIT 1
	`, credentialType)
}

func (s *PostgresSchemaStore) FindByJurisdiction(ctx context.Context, jurisdiction string) ([]*models.Schema, error) {
	return queryJSON[models.Schema](ctx, s.db,
		`SELECT document FROM credential_schemas WHERE jurisdiction = $1 ORDER BY id`, jurisdiction)
}

func (s *PostgresSchemaStore) one(ctx context.Context, query string, arg any) (*models.Schema, error) {
	var doc []byte
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find schema: %w", err)
	}
	return decodeJSON[models.Schema](doc)
}

// PostgresPresentationStore persists presentations as JSONB.
type PostgresPresentationStore struct {
	db *sql.DB
}

func NewPostgresPresentationStore(db *sql.DB) *PostgresPresentationStore {
	return &PostgresPresentationStore{db: db}
}

func (s *PostgresPresentationStore) Save(ctx context.Context, vp *models.VerifiablePresentation) error {
	doc, err := json.Marshal(vp)
	if err != nil {
		return fmt.Errorf("marshal presentation: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO presentations (id, holder_did, created_at, document) VALUES ($1, $2, $3, $4)`,
		vp.ID, vp.Holder, vp.CreatedAt, doc,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save presentation: %w", err)
	}
	return nil
}

func (s *PostgresPresentationStore) FindByID(ctx context.Context, presentationID string) (*models.VerifiablePresentation, error) {
	var doc []byte
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT document, created_at FROM presentations WHERE id = $1`, presentationID,
	).Scan(&doc, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find presentation: %w", err)
	}
	vp, err := decodeJSON[models.VerifiablePresentation](doc)
	if err != nil {
		return nil, err
	}
	vp.CreatedAt = createdAt
	return vp, nil
}

func (s *PostgresPresentationStore) FindByHolder(ctx context.Context, holderDID string) ([]*models.VerifiablePresentation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document, created_at FROM presentations WHERE holder_did = $1 ORDER BY created_at`, holderDID)
	if err != nil {
		return nil, fmt.Errorf("find presentations: %w", err)
	}
	defer rows.Close()

	var out []*models.VerifiablePresentation
	for rows.Next() {
		var doc []byte
		var createdAt time.Time
		if err := rows.Scan(&doc, &createdAt); err != nil {
			return nil, fmt.Errorf("scan presentation: %w", err)
		}
		vp, err := decodeJSON[models.VerifiablePresentation](doc)
		if err != nil {
			return nil, err
		}
		vp.CreatedAt = createdAt
		out = append(out, vp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presentations: %w", err)
	}
	return out, nil
}

func queryJSON[T any](ctx context.Context, db *sql.DB, query string, arg any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		v, err := decodeJSON[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func decodeJSON[T any](doc []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return &v, nil
}
