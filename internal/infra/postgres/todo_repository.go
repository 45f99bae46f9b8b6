package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/legal-rag/internal/core/plan"
	"github.com/jinford/legal-rag/pkg/lock"
)

// TodoRepository は core/plan.Repository を実装する PostgreSQL リポジトリ。
type TodoRepository struct {
	pool *pgxpool.Pool
}

// NewTodoRepository は新しい TodoRepository を返す。
func NewTodoRepository(pool *pgxpool.Pool) *TodoRepository {
	return &TodoRepository{pool: pool}
}

var _ plan.Repository = (*TodoRepository)(nil)

const insertTodoQuery = `
INSERT INTO todos (id, conversation_id, parent_id, content, status, order_index)
SELECT $1, $2, $3, $4, $5, COALESCE(MAX(order_index) + 1, 0)
FROM todos
WHERE conversation_id = $2
RETURNING order_index, created_at, updated_at
`

// Insert はタスクを保存する。
// order_index の採番はアドバイザリロックで会話単位に直列化する。
func (r *TodoRepository) Insert(ctx context.Context, item *plan.TodoItem) (*plan.TodoItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockID := lock.GenerateLockID("todos:order", item.ConversationID.String())
	if err := lock.Acquire(ctx, tx, lockID); err != nil {
		return nil, fmt.Errorf("failed to serialize todo insert: %w", err)
	}

	var (
		orderIndex int32
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, insertTodoQuery,
		UUIDToPgtype(item.ID),
		UUIDToPgtype(item.ConversationID),
		UUIDPtrToPgtype(item.ParentID),
		item.Content,
		string(item.Status),
	).Scan(&orderIndex, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert todo: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit todo insert: %w", err)
	}

	saved := *item
	saved.OrderIndex = int(orderIndex)
	saved.CreatedAt = PgtypeToTime(createdAt)
	saved.UpdatedAt = PgtypeToTime(updatedAt)
	return &saved, nil
}

const getTodoQuery = `
SELECT id, conversation_id, parent_id, content, status, order_index, result, created_at, updated_at
FROM todos
WHERE conversation_id = $1 AND id = $2
`

func (r *TodoRepository) Get(ctx context.Context, conversationID, id uuid.UUID) (*plan.TodoItem, error) {
	row := r.pool.QueryRow(ctx, getTodoQuery, UUIDToPgtype(conversationID), UUIDToPgtype(id))

	item, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, plan.ErrTodoNotFound
		}
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	return item, nil
}

func (r *TodoRepository) Update(ctx context.Context, item *plan.TodoItem) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE todos SET status = $3, result = $4, updated_at = now() WHERE conversation_id = $1 AND id = $2`,
		UUIDToPgtype(item.ConversationID),
		UUIDToPgtype(item.ID),
		string(item.Status),
		StringPtrToPgtext(item.Result),
	)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return plan.ErrTodoNotFound
	}
	return nil
}

const listTodosQuery = `
SELECT id, conversation_id, parent_id, content, status, order_index, result, created_at, updated_at
FROM todos
WHERE conversation_id = $1
  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
ORDER BY order_index ASC
`

func (r *TodoRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, statuses []plan.TodoStatus) ([]*plan.TodoItem, error) {
	statusValues := make([]string, 0, len(statuses))
	for _, s := range statuses {
		statusValues = append(statusValues, string(s))
	}

	rows, err := r.pool.Query(ctx, listTodosQuery, UUIDToPgtype(conversationID), statusValues)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	items := make([]*plan.TodoItem, 0)
	for rows.Next() {
		item, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read todos: %w", err)
	}
	return items, nil
}

func (r *TodoRepository) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM todos WHERE conversation_id = $1`,
		UUIDToPgtype(conversationID),
	)
	if err != nil {
		return fmt.Errorf("failed to delete todos: %w", err)
	}
	return nil
}

// scanTodo は1行を plan.TodoItem に変換する。
func scanTodo(row pgx.Row) (*plan.TodoItem, error) {
	var (
		id             pgtype.UUID
		conversationID pgtype.UUID
		parentID       pgtype.UUID
		content        string
		status         string
		orderIndex     int32
		result         pgtype.Text
		createdAt      pgtype.Timestamptz
		updatedAt      pgtype.Timestamptz
	)
	if err := row.Scan(&id, &conversationID, &parentID, &content, &status, &orderIndex, &result, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &plan.TodoItem{
		ID:             PgtypeToUUID(id),
		ConversationID: PgtypeToUUID(conversationID),
		ParentID:       PgtypeToUUIDPtr(parentID),
		Content:        content,
		Status:         plan.TodoStatus(status),
		OrderIndex:     int(orderIndex),
		Result:         PgtextToStringPtr(result),
		CreatedAt:      PgtypeToTime(createdAt),
		UpdatedAt:      PgtypeToTime(updatedAt),
	}, nil
}
