package memory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound は対象のキーが存在しない場合に返される
var ErrNotFound = errors.New("memory item not found")

// Repository は長期記憶の永続化インターフェース
// すべての操作は所有者スコープで行われ、
// このインターフェース経由で他の所有者のデータに触れることはできない
type Repository interface {
	// Get は（namespace, key）で1件取得する
	Get(ctx context.Context, ownerUserID uuid.UUID, namespace, key string) (*Item, error)

	// Upsert は1件保存する。既存キーの場合は値を置き換える
	Upsert(ctx context.Context, item *Item) (*Item, error)

	// Delete は1件削除する。存在しないキーでも成功する
	Delete(ctx context.Context, ownerUserID uuid.UUID, namespace, key string) error

	// ListKeys は名前空間内のキー一覧を辞書順で返す
	ListKeys(ctx context.Context, ownerUserID uuid.UUID, namespace string) ([]string, error)

	// SearchKeys は前方一致でキーを検索する
	SearchKeys(ctx context.Context, ownerUserID uuid.UUID, namespace, prefix string) ([]string, error)

	// Namespaces は所有者が使用中の名前空間一覧を返す
	Namespaces(ctx context.Context, ownerUserID uuid.UUID) ([]string, error)

	// DeleteNamespace は名前空間内の全件を削除する
	DeleteNamespace(ctx context.Context, ownerUserID uuid.UUID, namespace string) error
}
