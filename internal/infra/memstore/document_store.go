// Package memstore はコアのリポジトリ群のインメモリ実装を提供する。
// データベースを必要としないテストやローカル動作確認で使用する。
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/legal-rag/internal/core/document"
)

// DocumentStore は document.Repository のインメモリ実装。
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*document.Document
}

// NewDocumentStore は新しい DocumentStore を返す。
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[uuid.UUID]*document.Document)}
}

var _ document.Repository = (*DocumentStore)(nil)

// Put はドキュメントを登録する。テストのシード用
func (s *DocumentStore) Put(doc *document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *doc
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.docs[cp.ID] = &cp
}

func (s *DocumentStore) GetByID(ctx context.Context, ownerUserID, documentID uuid.UUID) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[documentID]
	if !ok || doc.OwnerUserID != ownerUserID {
		return nil, document.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *DocumentStore) ListByOwner(ctx context.Context, ownerUserID uuid.UUID, matterID *uuid.UUID) ([]*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*document.Document, 0)
	for _, doc := range s.docs {
		if doc.OwnerUserID != ownerUserID {
			continue
		}
		if matterID != nil && (doc.MatterID == nil || *doc.MatterID != *matterID) {
			continue
		}
		cp := *doc
		docs = append(docs, &cp)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (s *DocumentStore) UpdateStatus(ctx context.Context, documentID uuid.UUID, status document.Status, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[documentID]
	if !ok {
		return document.ErrNotFound
	}
	doc.Status = status
	doc.ChunkCount = chunkCount
	doc.UpdatedAt = time.Now()
	return nil
}
