package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

const keyPrefix = "wallet_session:"

// sessionJSON is the stored representation of a Session.
type sessionJSON struct {
	WalletID  string `json:"wallet_id"`
	OwnerID   string `json:"owner_id"`
	Salt      string `json:"salt"`
	KeyDigest string `json:"key_digest"`
	CreatedAt int64  `json:"created_at"` // Unix nano
	ExpiresAt int64  `json:"expires_at"` // Unix nano
}

// RedisStore shares sessions across instances. Keys expire with the session.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, walletID id.WalletID) (*models.Session, error) {
	data, err := s.client.Get(ctx, keyPrefix+walletID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	var j sessionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return fromJSON(&j)
}

func (s *RedisStore) Put(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(toJSON(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+session.WalletID.String(), data, lifetime(session)).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, walletID id.WalletID) error {
	if err := s.client.Del(ctx, keyPrefix+walletID.String()).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func toJSON(session *models.Session) *sessionJSON {
	return &sessionJSON{
		WalletID:  session.WalletID.String(),
		OwnerID:   session.OwnerID.String(),
		Salt:      session.Salt,
		KeyDigest: session.KeyDigest,
		CreatedAt: session.CreatedAt.UnixNano(),
		ExpiresAt: session.ExpiresAt.UnixNano(),
	}
}

func fromJSON(j *sessionJSON) (*models.Session, error) {
	walletID, err := uuid.Parse(j.WalletID)
	if err != nil {
		return nil, fmt.Errorf("parse session wallet id: %w", err)
	}
	ownerID, err := uuid.Parse(j.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("parse session owner id: %w", err)
	}
	return &models.Session{
		WalletID:  id.WalletID(walletID),
		OwnerID:   id.UserID(ownerID),
		Salt:      j.Salt,
		KeyDigest: j.KeyDigest,
		CreatedAt: time.Unix(0, j.CreatedAt).UTC(),
		ExpiresAt: time.Unix(0, j.ExpiresAt).UTC(),
	}, nil
}
