package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"attesto/internal/wallet/models"
	id "attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

// InMemoryWalletStore is a concurrency-safe WalletStore.
type InMemoryWalletStore struct {
	mu      sync.RWMutex
	wallets map[id.WalletID]*models.Wallet
	owners  map[id.UserID]id.WalletID
}

func NewInMemoryWalletStore() *InMemoryWalletStore {
	return &InMemoryWalletStore{
		wallets: make(map[id.WalletID]*models.Wallet),
		owners:  make(map[id.UserID]id.WalletID),
	}
}

func (s *InMemoryWalletStore) Save(_ context.Context, wallet *models.Wallet) error {
	c, err := cloneJSON(wallet)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[wallet.OwnerID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.wallets[wallet.ID]; ok {
		return sentinel.ErrConflict
	}
	s.wallets[wallet.ID] = c
	s.owners[wallet.OwnerID] = wallet.ID
	return nil
}

func (s *InMemoryWalletStore) Update(_ context.Context, wallet *models.Wallet) error {
	c, err := cloneJSON(wallet)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.wallets[wallet.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.OwnerID != wallet.OwnerID {
		return sentinel.ErrInvalidState
	}
	s.wallets[wallet.ID] = c
	return nil
}

func (s *InMemoryWalletStore) FindByID(_ context.Context, walletID id.WalletID) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneJSON(w)
}

func (s *InMemoryWalletStore) FindByOwner(_ context.Context, ownerID id.UserID) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	walletID, ok := s.owners[ownerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneJSON(s.wallets[walletID])
}

// DeleteByOwner is a no-op when the owner has no wallet.
func (s *InMemoryWalletStore) DeleteByOwner(_ context.Context, ownerID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	walletID, ok := s.owners[ownerID]
	if !ok {
		return nil
	}
	delete(s.wallets, walletID)
	delete(s.owners, ownerID)
	return nil
}

// InMemoryBackupStore is a concurrency-safe BackupStore.
type InMemoryBackupStore struct {
	mu      sync.RWMutex
	backups map[id.BackupID]*models.Backup
}

func NewInMemoryBackupStore() *InMemoryBackupStore {
	return &InMemoryBackupStore{backups: make(map[id.BackupID]*models.Backup)}
}

func (s *InMemoryBackupStore) Save(_ context.Context, backup *models.Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.backups[backup.ID]; ok {
		return sentinel.ErrConflict
	}
	c := *backup
	s.backups[backup.ID] = &c
	return nil
}

func (s *InMemoryBackupStore) FindByID(_ context.Context, backupID id.BackupID) (*models.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backups[backupID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (s *InMemoryBackupStore) FindLatest(ctx context.Context, ownerID id.UserID) (*models.Backup, error) {
	list, err := s.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return list[0], nil
}

func (s *InMemoryBackupStore) ListByOwner(_ context.Context, ownerID id.UserID) ([]*models.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Backup
	for _, b := range s.backups {
		if b.OwnerID == ownerID {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func cloneJSON[T any](v *T) (*T, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
