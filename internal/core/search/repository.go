package search

import (
	"context"
)

// Repository は類似検索のデータアクセスインターフェース
type Repository interface {
	// SearchChunks はクエリベクトルに類似するチャンクを検索する
	// 結果はスコア降順、同点は chunkIndex 昇順（決定性のため）。
	// Embedding 未生成のチャンクは対象外
	SearchChunks(ctx context.Context, queryVector []float32, filter Filter) ([]*SearchResult, error)
}
