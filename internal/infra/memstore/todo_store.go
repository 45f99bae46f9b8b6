package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/legal-rag/internal/core/plan"
)

// TodoStore は plan.Repository のインメモリ実装。
// orderIndex の採番はミューテックスで直列化する
type TodoStore struct {
	mu    sync.Mutex
	items map[uuid.UUID][]*plan.TodoItem
}

// NewTodoStore は新しい TodoStore を返す。
func NewTodoStore() *TodoStore {
	return &TodoStore{items: make(map[uuid.UUID][]*plan.TodoItem)}
}

var _ plan.Repository = (*TodoStore)(nil)

func (s *TodoStore) Insert(ctx context.Context, item *plan.TodoItem) (*plan.TodoItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.items[item.ConversationID]
	nextIndex := 0
	for _, it := range existing {
		if it.OrderIndex >= nextIndex {
			nextIndex = it.OrderIndex + 1
		}
	}

	now := time.Now()
	cp := *item
	cp.OrderIndex = nextIndex
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.items[item.ConversationID] = append(existing, &cp)

	result := cp
	return &result, nil
}

func (s *TodoStore) Get(ctx context.Context, conversationID, id uuid.UUID) (*plan.TodoItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items[conversationID] {
		if it.ID == id {
			cp := *it
			return &cp, nil
		}
	}
	return nil, plan.ErrTodoNotFound
}

func (s *TodoStore) Update(ctx context.Context, item *plan.TodoItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items[item.ConversationID] {
		if it.ID == item.ID {
			it.Status = item.Status
			it.Result = item.Result
			it.UpdatedAt = time.Now()
			return nil
		}
	}
	return plan.ErrTodoNotFound
}

func (s *TodoStore) ListByConversation(ctx context.Context, conversationID uuid.UUID, statuses []plan.TodoStatus) ([]*plan.TodoItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[plan.TodoStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	items := make([]*plan.TodoItem, 0)
	for _, it := range s.items[conversationID] {
		if len(wanted) > 0 && !wanted[it.Status] {
			continue
		}
		cp := *it
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].OrderIndex < items[j].OrderIndex
	})
	return items, nil
}

func (s *TodoStore) DeleteByConversation(ctx context.Context, conversationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, conversationID)
	return nil
}
