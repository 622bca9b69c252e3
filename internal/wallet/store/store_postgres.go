package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"attesto/internal/crypto"
	"attesto/internal/platform/database"
	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

// PostgresWalletStore keeps the wallet as JSONB next to its lookup columns.
// The unique index on owner_id enforces one wallet per owner.
type PostgresWalletStore struct {
	db *sql.DB
}

func NewPostgresWalletStore(db *sql.DB) *PostgresWalletStore {
	return &PostgresWalletStore{db: db}
}

func (s *PostgresWalletStore) Save(ctx context.Context, wallet *models.Wallet) error {
	doc, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	query := `
		INSERT INTO wallets (id, owner_id, status, primary_did, created_at, updated_at, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		wallet.ID.String(), wallet.OwnerID.String(), string(wallet.Status), wallet.PrimaryDID,
		wallet.CreatedAt, wallet.UpdatedAt, doc,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

func (s *PostgresWalletStore) Update(ctx context.Context, wallet *models.Wallet) error {
	doc, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("marshal wallet: %w", err)
	}
	query := `
		UPDATE wallets
		SET status = $3, primary_did = $4, updated_at = $5, document = $6
		WHERE id = $1 AND owner_id = $2
	`
	res, err := s.db.ExecContext(ctx, query,
		wallet.ID.String(), wallet.OwnerID.String(), string(wallet.Status), wallet.PrimaryDID,
		wallet.UpdatedAt, doc,
	)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update wallet: rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresWalletStore) FindByID(ctx context.Context, walletID id.WalletID) (*models.Wallet, error) {
	return s.one(ctx, `SELECT document FROM wallets WHERE id = $1`, walletID.String())
}

func (s *PostgresWalletStore) FindByOwner(ctx context.Context, ownerID id.UserID) (*models.Wallet, error) {
	return s.one(ctx, `SELECT document FROM wallets WHERE owner_id = $1`, ownerID.String())
}

func (s *PostgresWalletStore) DeleteByOwner(ctx context.Context, ownerID id.UserID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wallets WHERE owner_id = $1`, ownerID.String()); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return nil
}

func (s *PostgresWalletStore) one(ctx context.Context, query string, arg any) (*models.Wallet, error) {
	var doc []byte
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find wallet: %w", err)
	}
	var w models.Wallet
	if err := json.Unmarshal(doc, &w); err != nil {
		return nil, fmt.Errorf("unmarshal wallet: %w", err)
	}
	return &w, nil
}

// PostgresBackupStore stores each sealed field in its own column so the
// cipher and KDF parameters stay queryable.
type PostgresBackupStore struct {
	db *sql.DB
}

func NewPostgresBackupStore(db *sql.DB) *PostgresBackupStore {
	return &PostgresBackupStore{db: db}
}

const backupColumns = `id, owner_id, wallet_id, version, cipher, kdf, kdf_params, salt, iv, tag, ciphertext, checksum, created_at`

func (s *PostgresBackupStore) Save(ctx context.Context, backup *models.Backup) error {
	params, err := json.Marshal(backup.Encrypted.KDFParams)
	if err != nil {
		return fmt.Errorf("marshal kdf params: %w", err)
	}
	query := `
		INSERT INTO wallet_backups (` + backupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	enc := backup.Encrypted
	_, err = s.db.ExecContext(ctx, query,
		backup.ID.String(), backup.OwnerID.String(), backup.WalletID.String(), backup.Version,
		enc.Cipher, enc.KDF, params, enc.Salt, enc.IV, enc.Tag, enc.Ciphertext,
		backup.Checksum, backup.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save backup: %w", err)
	}
	return nil
}

func (s *PostgresBackupStore) FindByID(ctx context.Context, backupID id.BackupID) (*models.Backup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+backupColumns+` FROM wallet_backups WHERE id = $1`, backupID.String())
	b, err := scanBackup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find backup: %w", err)
	}
	return b, nil
}

func (s *PostgresBackupStore) FindLatest(ctx context.Context, ownerID id.UserID) (*models.Backup, error) {
	query := `SELECT ` + backupColumns + ` FROM wallet_backups WHERE owner_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	b, err := scanBackup(s.db.QueryRowContext(ctx, query, ownerID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find latest backup: %w", err)
	}
	return b, nil
}

func (s *PostgresBackupStore) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Backup, error) {
	query := `SELECT ` + backupColumns + ` FROM wallet_backups WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var out []*models.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backups: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackup(row rowScanner) (*models.Backup, error) {
	var (
		b                           models.Backup
		backupID, ownerID, walletID string
		params                      []byte
		enc                         crypto.EncryptedBlob
	)
	err := row.Scan(&backupID, &ownerID, &walletID, &b.Version,
		&enc.Cipher, &enc.KDF, &params, &enc.Salt, &enc.IV, &enc.Tag, &enc.Ciphertext,
		&b.Checksum, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if b.ID, err = id.ParseBackupID(backupID); err != nil {
		return nil, err
	}
	if b.OwnerID, err = id.ParseUserID(ownerID); err != nil {
		return nil, err
	}
	if b.WalletID, err = id.ParseWalletID(walletID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, &enc.KDFParams); err != nil {
		return nil, fmt.Errorf("unmarshal kdf params: %w", err)
	}
	b.Encrypted = enc
	return &b, nil
}
