// Package session stores wallet unlock sessions. Implementations return
// sentinel.ErrNotFound for a missing session; expiry against the request
// clock is enforced by the wallet service.
package session

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

// Store is the session capability.
type Store interface {
	Get(ctx context.Context, walletID id.WalletID) (*models.Session, error)
	Put(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, walletID id.WalletID) error
}

// InMemoryStore keeps sessions in a TTL cache. Reads never extend an entry.
type InMemoryStore struct {
	cache *ttlcache.Cache[id.WalletID, models.Session]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		cache: ttlcache.New[id.WalletID, models.Session](
			ttlcache.WithDisableTouchOnHit[id.WalletID, models.Session](),
		),
	}
}

func (s *InMemoryStore) Get(_ context.Context, walletID id.WalletID) (*models.Session, error) {
	item := s.cache.Get(walletID)
	if item == nil {
		return nil, sentinel.ErrNotFound
	}
	sess := item.Value()
	return &sess, nil
}

func (s *InMemoryStore) Put(_ context.Context, session *models.Session) error {
	s.cache.Set(session.WalletID, *session, lifetime(session))
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, walletID id.WalletID) error {
	s.cache.Delete(walletID)
	return nil
}

// lifetime is measured from the session's own timestamps so an injected
// request clock does not shorten or stretch the cache entry.
func lifetime(session *models.Session) time.Duration {
	ttl := session.ExpiresAt.Sub(session.CreatedAt)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}
