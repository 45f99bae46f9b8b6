package plan

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTodoNotFound は対象のタスクが存在しない場合に返される
var ErrTodoNotFound = errors.New("todo not found")

// Repository はタスク計画の永続化インターフェース
type Repository interface {
	// Insert はタスクを保存する
	// orderIndex の採番は会話単位で直列化すること。
	// 同一会話への並行 Insert でも重複インデックスを発生させてはならない
	Insert(ctx context.Context, item *TodoItem) (*TodoItem, error)

	// Get はIDでタスクを取得する
	Get(ctx context.Context, conversationID, id uuid.UUID) (*TodoItem, error)

	// Update はステータスと結果を更新する
	Update(ctx context.Context, item *TodoItem) error

	// ListByConversation は会話のタスクを orderIndex 昇順で取得する
	// statuses を指定した場合はその状態のみに絞り込む
	ListByConversation(ctx context.Context, conversationID uuid.UUID, statuses []TodoStatus) ([]*TodoItem, error)

	// DeleteByConversation は会話のタスクを一括削除する（計画リセット用）
	DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error
}
