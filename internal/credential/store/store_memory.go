package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"attesto/internal/credential/models"
	"attesto/internal/credential/statuslist"
	"attesto/pkg/platform/sentinel"
)

// InMemoryCredentialStore is a concurrency-safe CredentialStore.
type InMemoryCredentialStore struct {
	mu          sync.RWMutex
	credentials map[string]*models.VerifiableCredential
}

func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{credentials: make(map[string]*models.VerifiableCredential)}
}

func (s *InMemoryCredentialStore) Save(_ context.Context, vc *models.VerifiableCredential) error {
	c, err := cloneJSON(vc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[vc.ID]; ok {
		return sentinel.ErrConflict
	}
	s.credentials[vc.ID] = c
	return nil
}

func (s *InMemoryCredentialStore) FindByID(_ context.Context, credentialID string) (*models.VerifiableCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vc, ok := s.credentials[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneJSON(vc)
}

func (s *InMemoryCredentialStore) FindByHolder(_ context.Context, holderDID string) ([]*models.VerifiableCredential, error) {
	return s.filter(func(vc *models.VerifiableCredential) bool { return vc.SubjectID() == holderDID })
}

func (s *InMemoryCredentialStore) FindByType(_ context.Context, credentialType string) ([]*models.VerifiableCredential, error) {
	return s.filter(func(vc *models.VerifiableCredential) bool { return vc.HasType(credentialType) })
}

func (s *InMemoryCredentialStore) FindByIssuer(_ context.Context, issuerDID string) ([]*models.VerifiableCredential, error) {
	return s.filter(func(vc *models.VerifiableCredential) bool { return vc.Issuer.ID == issuerDID })
}

func (s *InMemoryCredentialStore) Delete(_ context.Context, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[credentialID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.credentials, credentialID)
	return nil
}

// filter returns matches ordered by issuance date, then id.
func (s *InMemoryCredentialStore) filter(keep func(*models.VerifiableCredential) bool) ([]*models.VerifiableCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.VerifiableCredential
	for _, vc := range s.credentials {
		if !keep(vc) {
			continue
		}
		c, err := cloneJSON(vc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuanceDate.Equal(out[j].IssuanceDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].IssuanceDate.Before(out[j].IssuanceDate)
	})
	return out, nil
}

// InMemoryRevocationStore is a concurrency-safe RevocationStore.
type InMemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]models.RevocationEntry
}

func NewInMemoryRevocationStore() *InMemoryRevocationStore {
	return &InMemoryRevocationStore{entries: make(map[string]models.RevocationEntry)}
}

func (s *InMemoryRevocationStore) IsRevoked(_ context.Context, credentialID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[credentialID]
	return ok, nil
}

func (s *InMemoryRevocationStore) Revoke(_ context.Context, entry *models.RevocationEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.CredentialID]; ok {
		return false, nil
	}
	s.entries[entry.CredentialID] = *entry
	return true, nil
}

func (s *InMemoryRevocationStore) GetStatus(_ context.Context, credentialID string) (*models.RevocationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

// InMemoryStatusListStore is a concurrency-safe StatusListStore.
type InMemoryStatusListStore struct {
	mu    sync.Mutex
	lists map[string]*memoryStatusList
}

type memoryStatusList struct {
	list      *statuslist.List
	next      uint
	updatedAt time.Time
}

func NewInMemoryStatusListStore() *InMemoryStatusListStore {
	return &InMemoryStatusListStore{lists: make(map[string]*memoryStatusList)}
}

func (s *InMemoryStatusListStore) Allocate(_ context.Context, listID string, length uint) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		l = &memoryStatusList{list: statuslist.New(length)}
		s.lists[listID] = l
	}
	if l.next >= l.list.Len() {
		return 0, sentinel.ErrInvalidState
	}
	idx := l.next
	l.next++
	return idx, nil
}

func (s *InMemoryStatusListStore) SetBit(_ context.Context, listID string, index uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if err := l.list.Set(index); err != nil {
		return sentinel.ErrInvalidState
	}
	l.updatedAt = at
	return nil
}

func (s *InMemoryStatusListStore) Get(_ context.Context, listID string) (*StatusListRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &StatusListRecord{
		ID:        listID,
		Length:    l.list.Len(),
		NextIndex: l.next,
		Bits:      l.list.Bytes(),
		UpdatedAt: l.updatedAt,
	}, nil
}

// InMemorySchemaStore is a concurrency-safe SchemaStore.
type InMemorySchemaStore struct {
	mu      sync.RWMutex
	schemas map[string]*models.Schema
}

func NewInMemorySchemaStore() *InMemorySchemaStore {
	return &InMemorySchemaStore{schemas: make(map[string]*models.Schema)}
}

// Save inserts or replaces a schema.
func (s *InMemorySchemaStore) Save(_ context.Context, schema *models.Schema) error {
	c, err := cloneJSON(schema)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[schema.ID] = c
	return nil
}

func (s *InMemorySchemaStore) FindByID(_ context.Context, schemaID string) (*models.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schemas[schemaID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneJSON(sc)
}

// FindDefaultForType returns the newest default schema for the type.
func (s *InMemorySchemaStore) FindDefaultForType(_ context.Context, credentialType string) (*models.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Schema
	for _, sc := range s.schemas {
		if sc.CredentialType != credentialType || !sc.IsDefault {
			continue
		}
		if found == nil || sc.CreatedAt.After(found.CreatedAt) {
			found = sc
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneJSON(found)
}

func (s *InMemorySchemaStore) FindByJurisdiction(_ context.Context, jurisdiction string) ([]*models.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Schema
	for _, sc := range s.schemas {
		if sc.Jurisdiction != jurisdiction {
			continue
		}
		c, err := cloneJSON(sc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InMemoryPresentationStore is a concurrency-safe PresentationStore.
type InMemoryPresentationStore struct {
	mu            sync.RWMutex
	presentations map[string]*models.VerifiablePresentation
}

func NewInMemoryPresentationStore() *InMemoryPresentationStore {
	return &InMemoryPresentationStore{presentations: make(map[string]*models.VerifiablePresentation)}
}

func (s *InMemoryPresentationStore) Save(_ context.Context, vp *models.VerifiablePresentation) error {
	c, err := cloneJSON(vp)
	if err != nil {
		return err
	}
	c.CreatedAt = vp.CreatedAt
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.presentations[vp.ID]; ok {
		return sentinel.ErrConflict
	}
	s.presentations[vp.ID] = c
	return nil
}

func (s *InMemoryPresentationStore) FindByID(_ context.Context, presentationID string) (*models.VerifiablePresentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vp, ok := s.presentations[presentationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c, err := cloneJSON(vp)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = vp.CreatedAt
	return c, nil
}

func (s *InMemoryPresentationStore) FindByHolder(_ context.Context, holderDID string) ([]*models.VerifiablePresentation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.VerifiablePresentation
	for _, vp := range s.presentations {
		if vp.Holder != holderDID {
			continue
		}
		c, err := cloneJSON(vp)
		if err != nil {
			return nil, err
		}
		c.CreatedAt = vp.CreatedAt
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// cloneJSON deep-copies through the wire form, which is what a real store
// would hand back.
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
