package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/legal-rag/internal/core/memory"
)

type memoryKey struct {
	ownerUserID uuid.UUID
	namespace   string
	key         string
}

// MemoryStore は memory.Repository のインメモリ実装。
type MemoryStore struct {
	mu    sync.RWMutex
	items map[memoryKey]*memory.Item
}

// NewMemoryStore は新しい MemoryStore を返す。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[memoryKey]*memory.Item)}
}

var _ memory.Repository = (*MemoryStore)(nil)

func (s *MemoryStore) Get(ctx context.Context, ownerUserID uuid.UUID, namespace, key string) (*memory.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[memoryKey{ownerUserID: ownerUserID, namespace: namespace, key: key}]
	if !ok {
		return nil, memory.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, item *memory.Item) (*memory.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{ownerUserID: item.OwnerUserID, namespace: item.Namespace, key: item.Key}
	now := time.Now()

	cp := *item
	cp.UpdatedAt = now
	if existing, ok := s.items[k]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.CreatedAt = now
	}
	s.items[k] = &cp

	result := cp
	return &result, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ownerUserID uuid.UUID, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, memoryKey{ownerUserID: ownerUserID, namespace: namespace, key: key})
	return nil
}

func (s *MemoryStore) ListKeys(ctx context.Context, ownerUserID uuid.UUID, namespace string) ([]string, error) {
	return s.collectKeys(ownerUserID, namespace, "")
}

func (s *MemoryStore) SearchKeys(ctx context.Context, ownerUserID uuid.UUID, namespace, prefix string) ([]string, error) {
	return s.collectKeys(ownerUserID, namespace, prefix)
}

func (s *MemoryStore) collectKeys(ownerUserID uuid.UUID, namespace, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.items {
		if k.ownerUserID != ownerUserID || k.namespace != namespace {
			continue
		}
		if prefix != "" && !strings.HasPrefix(k.key, prefix) {
			continue
		}
		keys = append(keys, k.key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Namespaces(ctx context.Context, ownerUserID uuid.UUID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for k := range s.items {
		if k.ownerUserID == ownerUserID {
			seen[k.namespace] = true
		}
	}

	namespaces := make([]string, 0, len(seen))
	for ns := range seen {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	return namespaces, nil
}

func (s *MemoryStore) DeleteNamespace(ctx context.Context, ownerUserID uuid.UUID, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.items {
		if k.ownerUserID == ownerUserID && k.namespace == namespace {
			delete(s.items, k)
		}
	}
	return nil
}
