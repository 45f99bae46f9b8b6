package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// Chunk はドキュメントから切り出したテキスト断片を表す
// Embedding と検索の最小単位
type Chunk struct {
	ID          uuid.UUID  `json:"id"`
	DocumentID  uuid.UUID  `json:"documentID"`
	OwnerUserID uuid.UUID  `json:"ownerUserID"`
	MatterID    *uuid.UUID `json:"matterID,omitempty"`

	// ChunkIndex はドキュメント内の連番（0始まり・欠番なし）
	ChunkIndex int    `json:"chunkIndex"`
	Content    string `json:"content"`

	// 元テキスト上の文字オフセット（回答スパンの出典追跡用）
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`

	// Tokens は cl100k_base でのトークン数
	Tokens int `json:"tokens"`

	// Metadata は管轄・実務分野・文書種別などの自由なキー/バリュー
	Metadata map[string]string `json:"metadata,omitempty"`

	// Embedding は未生成の間 nil。nil のチャンクは類似検索の対象外
	Embedding []float32 `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
}

// IndexResult はドキュメントのインデックス化結果を表す
type IndexResult struct {
	DocumentID  uuid.UUID
	ChunkCount  int
	TotalTokens int
	Duration    time.Duration
}

// IndexParams はインデックス化のパラメータを表す
type IndexParams struct {
	DocumentID  uuid.UUID
	OwnerUserID uuid.UUID
	MatterID    *uuid.UUID
	Text        string
	Metadata    map[string]string
}
