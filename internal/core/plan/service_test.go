package plan_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/legal-rag/internal/core/plan"
	"github.com/jinford/legal-rag/internal/infra/memstore"
)

func newTestTodoService() *plan.TodoService {
	return plan.NewTodoService(memstore.NewTodoStore())
}

func TestTodoService_Add(t *testing.T) {
	ctx := context.Background()
	conversationID := uuid.New()

	t.Run("orderIndex は作成順に単調増加する", func(t *testing.T) {
		svc := newTestTodoService()

		first, err := svc.Add(ctx, conversationID, "条項を検索する", nil)
		require.NoError(t, err)
		second, err := svc.Add(ctx, conversationID, "リスクを分析する", nil)
		require.NoError(t, err)

		assert.Equal(t, 0, first.OrderIndex)
		assert.Equal(t, 1, second.OrderIndex)
		assert.Equal(t, plan.TodoStatusPending, first.Status)
	})

	t.Run("会話ごとに独立して採番される", func(t *testing.T) {
		svc := newTestTodoService()
		other := uuid.New()

		_, err := svc.Add(ctx, conversationID, "タスク1", nil)
		require.NoError(t, err)
		item, err := svc.Add(ctx, other, "別会話のタスク", nil)
		require.NoError(t, err)

		assert.Equal(t, 0, item.OrderIndex)
	})

	t.Run("並行追加でもインデックスが重複しない", func(t *testing.T) {
		svc := newTestTodoService()
		const workers = 20

		var wg sync.WaitGroup
		indexes := make(chan int, workers)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				item, err := svc.Add(ctx, conversationID, "並行タスク", nil)
				if err == nil {
					indexes <- item.OrderIndex
				}
			}()
		}
		wg.Wait()
		close(indexes)

		seen := make(map[int]bool)
		count := 0
		for idx := range indexes {
			assert.False(t, seen[idx], "orderIndex %d が重複している", idx)
			seen[idx] = true
			count++
		}
		assert.Equal(t, workers, count)
	})

	t.Run("content 未指定はエラー", func(t *testing.T) {
		svc := newTestTodoService()

		_, err := svc.Add(ctx, conversationID, "", nil)
		assert.Error(t, err)
	})

	t.Run("conversationID 未指定はエラー", func(t *testing.T) {
		svc := newTestTodoService()

		_, err := svc.Add(ctx, uuid.Nil, "タスク", nil)
		assert.Error(t, err)
	})
}

func TestTodoService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	conversationID := uuid.New()

	t.Run("pending → in_progress → completed と遷移できる", func(t *testing.T) {
		svc := newTestTodoService()
		item, err := svc.Add(ctx, conversationID, "タスク", nil)
		require.NoError(t, err)

		updated, err := svc.UpdateStatus(ctx, conversationID, item.ID, plan.TodoStatusInProgress, nil)
		require.NoError(t, err)
		assert.Equal(t, plan.TodoStatusInProgress, updated.Status)

		result := "完了メモ"
		updated, err = svc.UpdateStatus(ctx, conversationID, item.ID, plan.TodoStatusCompleted, &result)
		require.NoError(t, err)
		assert.Equal(t, plan.TodoStatusCompleted, updated.Status)
		require.NotNil(t, updated.Result)
		assert.Equal(t, "完了メモ", *updated.Result)
	})

	t.Run("pending から completed への直接遷移は拒否する", func(t *testing.T) {
		svc := newTestTodoService()
		item, err := svc.Add(ctx, conversationID, "タスク", nil)
		require.NoError(t, err)

		_, err = svc.UpdateStatus(ctx, conversationID, item.ID, plan.TodoStatusCompleted, nil)
		assert.Error(t, err)
	})

	t.Run("終端状態からは遷移できない", func(t *testing.T) {
		svc := newTestTodoService()
		item, err := svc.Add(ctx, conversationID, "タスク", nil)
		require.NoError(t, err)

		_, err = svc.UpdateStatus(ctx, conversationID, item.ID, plan.TodoStatusCancelled, nil)
		require.NoError(t, err)

		_, err = svc.UpdateStatus(ctx, conversationID, item.ID, plan.TodoStatusInProgress, nil)
		assert.Error(t, err)
	})

	t.Run("非終端状態からは常に cancelled にできる", func(t *testing.T) {
		svc := newTestTodoService()
		item, err := svc.Add(ctx, conversationID, "タスク", nil)
		require.NoError(t, err)

		_, err = svc.UpdateStatus(ctx, conversationID, item.ID, plan.TodoStatusInProgress, nil)
		require.NoError(t, err)

		updated, err := svc.UpdateStatus(ctx, conversationID, item.ID, plan.TodoStatusCancelled, nil)
		require.NoError(t, err)
		assert.Equal(t, plan.TodoStatusCancelled, updated.Status)
	})

	t.Run("存在しないタスクはエラー", func(t *testing.T) {
		svc := newTestTodoService()

		_, err := svc.UpdateStatus(ctx, conversationID, uuid.New(), plan.TodoStatusInProgress, nil)
		assert.Error(t, err)
	})

	t.Run("未知のステータスはエラー", func(t *testing.T) {
		svc := newTestTodoService()
		item, err := svc.Add(ctx, conversationID, "タスク", nil)
		require.NoError(t, err)

		_, err = svc.UpdateStatus(ctx, conversationID, item.ID, plan.TodoStatus("unknown"), nil)
		assert.Error(t, err)
	})
}

func TestTodoService_GetPending(t *testing.T) {
	ctx := context.Background()
	conversationID := uuid.New()
	svc := newTestTodoService()

	first, err := svc.Add(ctx, conversationID, "タスク1", nil)
	require.NoError(t, err)
	second, err := svc.Add(ctx, conversationID, "タスク2", nil)
	require.NoError(t, err)
	_, err = svc.Add(ctx, conversationID, "タスク3", nil)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, conversationID, first.ID, plan.TodoStatusInProgress, nil)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, conversationID, second.ID, plan.TodoStatusCancelled, nil)
	require.NoError(t, err)

	pending, err := svc.GetPending(ctx, conversationID)
	require.NoError(t, err)

	// in_progress と pending のみ。orderIndex 昇順
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, "タスク3", pending[1].Content)
}

func TestTodoService_Clear(t *testing.T) {
	ctx := context.Background()
	conversationID := uuid.New()
	svc := newTestTodoService()

	_, err := svc.Add(ctx, conversationID, "タスク", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, conversationID))

	items, err := svc.GetAll(ctx, conversationID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// クリア後の採番は 0 から再開する
	item, err := svc.Add(ctx, conversationID, "新しいタスク", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, item.OrderIndex)
}
