package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"attesto/internal/credential/models"
	"attesto/pkg/platform/sentinel"
)

const revocationKeyPrefix = "revocation:"

// revocationJSON is the stored representation of a RevocationEntry.
type revocationJSON struct {
	CredentialID string `json:"credential_id"`
	Reason       string `json:"reason"`
	RevokedBy    string `json:"revoked_by"`
	RevokedAt    int64  `json:"revoked_at"` // Unix nano
	StatusListID string `json:"status_list_id,omitempty"`
	StatusIndex  *uint  `json:"status_index,omitempty"`
}

// RedisRevocationStore shares revocations across instances. SETNX keeps the
// first revocation and makes repeats no-ops.
type RedisRevocationStore struct {
	client *redis.Client
}

func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+credentialID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n == 1, nil
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, entry *models.RevocationEntry) (bool, error) {
	data, err := json.Marshal(revocationJSON{
		CredentialID: entry.CredentialID,
		Reason:       entry.Reason,
		RevokedBy:    entry.RevokedBy,
		RevokedAt:    entry.RevokedAt.UnixNano(),
		StatusListID: entry.StatusListID,
		StatusIndex:  entry.StatusIndex,
	})
	if err != nil {
		return false, fmt.Errorf("marshal revocation: %w", err)
	}
	created, err := s.client.SetNX(ctx, revocationKeyPrefix+entry.CredentialID, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("revoke credential: %w", err)
	}
	return created, nil
}

func (s *RedisRevocationStore) GetStatus(ctx context.Context, credentialID string) (*models.RevocationEntry, error) {
	data, err := s.client.Get(ctx, revocationKeyPrefix+credentialID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get revocation: %w", err)
	}
	var j revocationJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal revocation: %w", err)
	}
	return &models.RevocationEntry{
		CredentialID: j.CredentialID,
		Reason:       j.Reason,
		RevokedBy:    j.RevokedBy,
		RevokedAt:    time.Unix(0, j.RevokedAt).UTC(),
		StatusListID: j.StatusListID,
		StatusIndex:  j.StatusIndex,
	}, nil
}
