package store

import (
	"context"
	"sort"
	"sync"

	"attesto/internal/identity/models"
	id "attesto/pkg/domain"
	"attesto/pkg/platform/sentinel"
)

// InMemoryDIDStore is a concurrency-safe DIDStore for tests and single-node use.
type InMemoryDIDStore struct {
	mu   sync.RWMutex
	dids map[string]*models.DID
}

func NewInMemoryDIDStore() *InMemoryDIDStore {
	return &InMemoryDIDStore{dids: make(map[string]*models.DID)}
}

func (s *InMemoryDIDStore) Save(_ context.Context, did *models.DID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dids[did.DID]; ok {
		return sentinel.ErrConflict
	}
	if did.IsPrimary && s.primaryLocked(did.OwnerID) != nil {
		return sentinel.ErrConflict
	}
	s.dids[did.DID] = did.Clone()
	return nil
}

func (s *InMemoryDIDStore) Update(_ context.Context, did *models.DID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dids[did.DID]; !ok {
		return sentinel.ErrNotFound
	}
	if did.IsPrimary {
		if p := s.primaryLocked(did.OwnerID); p != nil && p.DID != did.DID {
			return sentinel.ErrConflict
		}
	}
	s.dids[did.DID] = did.Clone()
	return nil
}

func (s *InMemoryDIDStore) FindByDID(_ context.Context, did string) (*models.DID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.dids[did]; ok {
		return d.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByOwner returns the owner's DIDs oldest first.
func (s *InMemoryDIDStore) FindByOwner(_ context.Context, ownerID id.UserID) ([]*models.DID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DID
	for _, d := range s.dids {
		if d.OwnerID == ownerID {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].DID < out[j].DID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryDIDStore) FindPrimary(_ context.Context, ownerID id.UserID) (*models.DID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.primaryLocked(ownerID); d != nil {
		return d.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryDIDStore) primaryLocked(ownerID id.UserID) *models.DID {
	for _, d := range s.dids {
		if d.OwnerID == ownerID && d.IsPrimary {
			return d
		}
	}
	return nil
}

// InMemoryDocumentStore is a concurrency-safe DocumentStore.
type InMemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*models.Document
}

func NewInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{docs: make(map[string]*models.Document)}
}

// Save inserts or replaces the document.
func (s *InMemoryDocumentStore) Save(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc.Clone()
	return nil
}

func (s *InMemoryDocumentStore) Find(_ context.Context, did string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.docs[did]; ok {
		return d.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// InMemoryKeyStore is a concurrency-safe KeyStore.
type InMemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*models.KeyPair
}

func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{keys: make(map[string]*models.KeyPair)}
}

func (s *InMemoryKeyStore) Save(_ context.Context, key *models.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; ok {
		return sentinel.ErrConflict
	}
	s.keys[key.ID] = key.Clone()
	return nil
}

func (s *InMemoryKeyStore) Update(_ context.Context, key *models.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.keys[key.ID] = key.Clone()
	return nil
}

func (s *InMemoryKeyStore) FindByID(_ context.Context, keyID string) (*models.KeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, ok := s.keys[keyID]; ok {
		return k.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByDID returns the DID's keys oldest first.
func (s *InMemoryKeyStore) FindByDID(_ context.Context, did string) ([]*models.KeyPair, error) {
	return s.filter(func(k *models.KeyPair) bool { return k.DID == did }), nil
}

// FindByOwner returns the owner's keys oldest first.
func (s *InMemoryKeyStore) FindByOwner(_ context.Context, ownerID id.UserID) ([]*models.KeyPair, error) {
	return s.filter(func(k *models.KeyPair) bool { return k.OwnerID == ownerID }), nil
}

func (s *InMemoryKeyStore) filter(keep func(*models.KeyPair) bool) []*models.KeyPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.KeyPair
	for _, k := range s.keys {
		if keep(k) {
			out = append(out, k.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
