package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TodoService はエージェントのタスク計画を管理する
// すべての操作は1つの会話にスコープされる
type TodoService struct {
	repo   Repository
	logger *slog.Logger
}

// TodoServiceOption は TodoService のオプション設定
type TodoServiceOption func(*TodoService)

// WithTodoLogger は TodoService にロガーを設定する
func WithTodoLogger(logger *slog.Logger) TodoServiceOption {
	return func(s *TodoService) {
		s.logger = logger
	}
}

// NewTodoService は新しいTodoServiceを作成する
func NewTodoService(repo Repository, opts ...TodoServiceOption) *TodoService {
	svc := &TodoService{
		repo:   repo,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Add はタスクを追加する
// orderIndex はリポジトリ側で「既存最大値+1（なければ0）」を原子的に採番する
func (s *TodoService) Add(ctx context.Context, conversationID uuid.UUID, content string, parentID *uuid.UUID) (*TodoItem, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("conversationID is required")
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}

	now := time.Now()
	item, err := s.repo.Insert(ctx, &TodoItem{
		ID:             uuid.New(),
		ConversationID: conversationID,
		ParentID:       parentID,
		Content:        content,
		Status:         TodoStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert todo: %w", err)
	}
	return item, nil
}

// UpdateStatus はタスクの状態を遷移させる
// 許可された遷移のみ受け付け、終端状態のタスクは変更できない
func (s *TodoService) UpdateStatus(ctx context.Context, conversationID, id uuid.UUID, status TodoStatus, result *string) (*TodoItem, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status: %q", status)
	}

	item, err := s.repo.Get(ctx, conversationID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}

	if !item.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("illegal status transition: %s -> %s", item.Status, status)
	}

	item.Status = status
	if result != nil {
		item.Result = result
	}
	item.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}

	s.logger.Info("todo status updated",
		"todoID", id.String(),
		"status", string(status),
	)

	return item, nil
}

// GetAll は会話の全タスクを orderIndex 昇順で返す
// 1件もなければ空のスライスを返す（エラーにしない）
func (s *TodoService) GetAll(ctx context.Context, conversationID uuid.UUID) ([]*TodoItem, error) {
	items, err := s.repo.ListByConversation(ctx, conversationID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return items, nil
}

// GetPending は未完了（pending / in_progress）のタスクのみを返す
func (s *TodoService) GetPending(ctx context.Context, conversationID uuid.UUID) ([]*TodoItem, error) {
	items, err := s.repo.ListByConversation(ctx, conversationID, []TodoStatus{TodoStatusPending, TodoStatusInProgress})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending todos: %w", err)
	}
	return items, nil
}

// Clear は会話の計画をリセットする
func (s *TodoService) Clear(ctx context.Context, conversationID uuid.UUID) error {
	if err := s.repo.DeleteByConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to clear todos: %w", err)
	}
	return nil
}
