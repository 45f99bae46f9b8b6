package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// QueryEmbedder はクエリテキストのEmbedding生成インターフェース
// ドキュメント用とは別の内部モードを使う埋め込みモデルがあるため、
// 検索側は必ずクエリ用モードを使用する
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchService は類似検索のビジネスロジックを提供する
type SearchService struct {
	repo     Repository
	embedder QueryEmbedder
	logger   *slog.Logger
}

// SearchServiceOption は SearchService のオプション設定
type SearchServiceOption func(*SearchService)

// WithSearchLogger は SearchService にロガーを設定する
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = logger
	}
}

// NewSearchService は新しいSearchServiceを作成する
func NewSearchService(repo Repository, embedder QueryEmbedder, opts ...SearchServiceOption) *SearchService {
	svc := &SearchService{
		repo:     repo,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// SearchParams は検索パラメータを表す
type SearchParams struct {
	OwnerUserID uuid.UUID
	MatterID    *uuid.UUID
	Query       string
	Limit       int     // デフォルト: 10
	Threshold   float64 // デフォルト: 0（足切りなし）
}

// Search はクエリに基づいて所有者スコープのベクトル検索を実行する
func (s *SearchService) Search(ctx context.Context, params SearchParams) ([]*SearchResult, error) {
	if params.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	// グローバル検索への退化を防ぐ: 所有者スコープは必須
	if params.OwnerUserID == uuid.Nil {
		return nil, fmt.Errorf("ownerUserID is required")
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	results, err := s.repo.SearchChunks(ctx, queryVector, Filter{
		OwnerUserID: params.OwnerUserID,
		MatterID:    params.MatterID,
		Limit:       limit,
		Threshold:   params.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	s.logger.Info("similarity search completed",
		"ownerUserID", params.OwnerUserID.String(),
		"results", len(results),
		"limit", limit,
	)

	return results, nil
}
