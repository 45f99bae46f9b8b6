package document

import (
	"time"

	"github.com/google/uuid"
)

// Status はドキュメントの処理状態を表す
type Status string

const (
	// StatusPending はテキスト抽出待ちの状態
	StatusPending Status = "pending"
	// StatusProcessing はチャンク化・Embedding生成中の状態
	StatusProcessing Status = "processing"
	// StatusReady は検索可能な状態
	StatusReady Status = "ready"
	// StatusError は処理に失敗した状態
	StatusError Status = "error"
)

// Document はアップロード済みドキュメントを表す
// 本コアはドキュメントをテキストの供給元として参照し、
// チャンク数と処理状態のみを書き戻す
type Document struct {
	ID          uuid.UUID  `json:"id"`
	OwnerUserID uuid.UUID  `json:"ownerUserID"`
	MatterID    *uuid.UUID `json:"matterID,omitempty"`
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	ChunkCount  int        `json:"chunkCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
