package plan

import (
	"time"

	"github.com/google/uuid"
)

// TodoStatus はタスクの状態を表す
type TodoStatus string

const (
	TodoStatusPending    TodoStatus = "pending"
	TodoStatusInProgress TodoStatus = "in_progress"
	TodoStatusCompleted  TodoStatus = "completed"
	TodoStatusCancelled  TodoStatus = "cancelled"
)

// Valid は既知のステータス値かどうかを返す
func (s TodoStatus) Valid() bool {
	switch s {
	case TodoStatusPending, TodoStatusInProgress, TodoStatusCompleted, TodoStatusCancelled:
		return true
	}
	return false
}

// Terminal は終端状態（以後遷移しない）かどうかを返す
func (s TodoStatus) Terminal() bool {
	return s == TodoStatusCompleted || s == TodoStatusCancelled
}

// CanTransitionTo は許可された状態遷移かどうかを返す
// pending → in_progress → completed、および非終端 → cancelled のみ許可
func (s TodoStatus) CanTransitionTo(next TodoStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case TodoStatusCancelled:
		return true
	case TodoStatusInProgress:
		return s == TodoStatusPending
	case TodoStatusCompleted:
		return s == TodoStatusInProgress
	}
	return false
}

// TodoItem はエージェントのタスク計画の1項目を表す
// 1つの会話に完全に帰属する
type TodoItem struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversationID"`
	ParentID       *uuid.UUID `json:"parentID,omitempty"`
	Content        string     `json:"content"`
	Status         TodoStatus `json:"status"`
	// OrderIndex は会話内での安定した並び順。作成順に単調増加する
	OrderIndex int `json:"orderIndex"`
	// Result は完了時にエージェントが記録する自由記述
	Result    *string   `json:"result,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
