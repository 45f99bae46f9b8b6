package search

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSearchRepository は Repository のテスト用実装
type stubSearchRepository struct {
	lastVector []float32
	lastFilter Filter
	results    []*SearchResult
	err        error
}

func (s *stubSearchRepository) SearchChunks(ctx context.Context, queryVector []float32, filter Filter) ([]*SearchResult, error) {
	s.lastVector = queryVector
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

// stubQueryEmbedder は QueryEmbedder のテスト用実装
type stubQueryEmbedder struct {
	vector []float32
	calls  []string
	err    error
}

func (s *stubQueryEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	s.calls = append(s.calls, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func TestSearchService_Search(t *testing.T) {
	ownerID := uuid.New()

	t.Run("クエリをEmbeddingしてリポジトリに渡す", func(t *testing.T) {
		repo := &stubSearchRepository{
			results: []*SearchResult{
				{ChunkID: uuid.New(), Content: "支払条件", Score: 0.92},
			},
		}
		embedder := &stubQueryEmbedder{vector: []float32{0.1, 0.2, 0.3}}
		svc := NewSearchService(repo, embedder)

		results, err := svc.Search(context.Background(), SearchParams{
			OwnerUserID: ownerID,
			Query:       "支払条件は？",
		})
		require.NoError(t, err)

		assert.Len(t, results, 1)
		assert.Equal(t, []string{"支払条件は？"}, embedder.calls)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, repo.lastVector)
		assert.Equal(t, ownerID, repo.lastFilter.OwnerUserID)
	})

	t.Run("limit 未指定はデフォルト10", func(t *testing.T) {
		repo := &stubSearchRepository{}
		svc := NewSearchService(repo, &stubQueryEmbedder{vector: []float32{1}})

		_, err := svc.Search(context.Background(), SearchParams{
			OwnerUserID: ownerID,
			Query:       "q",
		})
		require.NoError(t, err)
		assert.Equal(t, 10, repo.lastFilter.Limit)
	})

	t.Run("matterID と threshold が引き継がれる", func(t *testing.T) {
		repo := &stubSearchRepository{}
		svc := NewSearchService(repo, &stubQueryEmbedder{vector: []float32{1}})

		matterID := uuid.New()
		_, err := svc.Search(context.Background(), SearchParams{
			OwnerUserID: ownerID,
			MatterID:    &matterID,
			Query:       "q",
			Limit:       5,
			Threshold:   0.7,
		})
		require.NoError(t, err)

		require.NotNil(t, repo.lastFilter.MatterID)
		assert.Equal(t, matterID, *repo.lastFilter.MatterID)
		assert.Equal(t, 5, repo.lastFilter.Limit)
		assert.Equal(t, 0.7, repo.lastFilter.Threshold)
	})

	t.Run("クエリ未指定はエラー", func(t *testing.T) {
		embedder := &stubQueryEmbedder{vector: []float32{1}}
		svc := NewSearchService(&stubSearchRepository{}, embedder)

		_, err := svc.Search(context.Background(), SearchParams{OwnerUserID: ownerID})
		assert.Error(t, err)
		assert.Empty(t, embedder.calls)
	})

	t.Run("所有者スコープ未指定はエラー", func(t *testing.T) {
		embedder := &stubQueryEmbedder{vector: []float32{1}}
		svc := NewSearchService(&stubSearchRepository{}, embedder)

		_, err := svc.Search(context.Background(), SearchParams{Query: "q"})
		assert.Error(t, err)
		assert.Empty(t, embedder.calls)
	})

	t.Run("Embedding失敗はエラーを返す", func(t *testing.T) {
		repo := &stubSearchRepository{}
		svc := NewSearchService(repo, &stubQueryEmbedder{err: errors.New("api down")})

		_, err := svc.Search(context.Background(), SearchParams{
			OwnerUserID: ownerID,
			Query:       "q",
		})
		assert.Error(t, err)
		assert.Nil(t, repo.lastVector)
	})
}
