package memory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultNamespace は名前空間未指定時に使うカテゴリ
const DefaultNamespace = "default"

// Item は会話をまたいで持続するキー/バリュー形式の事実を表す
// (ownerUserID, namespace, key) が一意で、書き込みは常に upsert
type Item struct {
	OwnerUserID uuid.UUID `json:"ownerUserID"`
	Namespace   string    `json:"namespace"`
	Key         string    `json:"key"`
	// Value は任意の構造化データ
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
