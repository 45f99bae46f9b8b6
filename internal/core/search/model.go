package search

import (
	"github.com/google/uuid"
)

// SearchResult はベクトル類似検索の結果1件を表す（非永続）
type SearchResult struct {
	ChunkID    uuid.UUID         `json:"chunkID"`
	DocumentID uuid.UUID         `json:"documentID"`
	ChunkIndex int               `json:"chunkIndex"`
	Content    string            `json:"content"`
	// Score はコサイン類似度（0〜1、高いほど類似）
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Filter は類似検索のスコープと絞り込み条件を表す
// OwnerUserID は必須。データ分離のため、所有者スコープのない検索は実行しない
type Filter struct {
	OwnerUserID uuid.UUID
	MatterID    *uuid.UUID
	Limit       int
	// Threshold 未満のスコアの結果は返さない
	Threshold float64
}
