package memstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jinford/legal-rag/internal/core/ingestion"
	"github.com/jinford/legal-rag/internal/core/search"
)

type chunkKey struct {
	documentID uuid.UUID
	chunkIndex int
}

// ChunkStore はチャンク永続化と類似検索のインメモリ実装。
// 類似度はコサイン類似度を総当たりで計算する
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[chunkKey]*ingestion.Chunk
}

// NewChunkStore は新しい ChunkStore を返す。
func NewChunkStore() *ChunkStore {
	return &ChunkStore{chunks: make(map[chunkKey]*ingestion.Chunk)}
}

var (
	_ ingestion.Repository = (*ChunkStore)(nil)
	_ search.Repository    = (*ChunkStore)(nil)
)

func (s *ChunkStore) UpsertChunks(ctx context.Context, chunks []*ingestion.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		cp := *c
		s.chunks[chunkKey{documentID: c.DocumentID, chunkIndex: c.ChunkIndex}] = &cp
	}
	return nil
}

func (s *ChunkStore) DeleteChunksFrom(ctx context.Context, documentID uuid.UUID, fromIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.chunks {
		if key.documentID == documentID && key.chunkIndex >= fromIndex {
			delete(s.chunks, key)
		}
	}
	return nil
}

func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.chunks {
		if key.documentID == documentID {
			delete(s.chunks, key)
		}
	}
	return nil
}

// Count は保存済みチャンク数を返す。テストの検証用
func (s *ChunkStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *ChunkStore) SearchChunks(ctx context.Context, queryVector []float32, filter search.Filter) ([]*search.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*search.SearchResult, 0)
	for _, c := range s.chunks {
		if c.OwnerUserID != filter.OwnerUserID {
			continue
		}
		if filter.MatterID != nil && (c.MatterID == nil || *c.MatterID != *filter.MatterID) {
			continue
		}
		if len(c.Embedding) == 0 {
			continue
		}
		score := cosineSimilarity(queryVector, c.Embedding)
		if score < filter.Threshold {
			continue
		}
		results = append(results, &search.SearchResult{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
			Score:      score,
			Metadata:   c.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
