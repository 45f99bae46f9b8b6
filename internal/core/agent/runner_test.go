package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel は ChatModel のテスト用実装
// 呼び出しごとに responses を順に返す
type scriptedModel struct {
	mu        sync.Mutex
	responses []*ModelResponse
	deltas    [][]string
	calls     [][]Message
	block     chan struct{} // 非nilなら応答前にクローズを待つ
}

func (m *scriptedModel) StreamCompletion(ctx context.Context, messages []Message, tools []ToolDefinition, onDelta func(string)) (*ModelResponse, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, append([]Message(nil), messages...))
	m.mu.Unlock()

	if call < len(m.deltas) && onDelta != nil {
		for _, d := range m.deltas[call] {
			onDelta(d)
		}
	}
	if call >= len(m.responses) {
		return &ModelResponse{Content: "done"}, nil
	}
	return m.responses[call], nil
}

func collectEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	collected := make([]Event, 0)
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatal("イベント列が終了しない")
		}
	}
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func countingTool(name string, counter *int) *Tool {
	return &Tool{
		Name:        name,
		Description: "テスト用ツール",
		Schema:      map[string]any{"type": "object"},
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			*counter++
			return map[string]string{"tool": name}, nil
		},
	}
}

func TestRunner_Run(t *testing.T) {
	t.Run("ツール呼び出しなしは1回で終端する", func(t *testing.T) {
		model := &scriptedModel{
			responses: []*ModelResponse{{Content: "最終回答"}},
			deltas:    [][]string{{"最終", "回答"}},
		}
		registry, err := NewRegistry()
		require.NoError(t, err)
		runner := NewRunner(model, registry)

		events := collectEvents(t, runner.Run(context.Background(), nil, "質問"))

		require.Equal(t, []EventType{EventMessageDelta, EventMessageDelta, EventRunFinished}, eventTypes(events))
		assert.Equal(t, "最終", events[0].Delta)
		assert.Equal(t, "最終回答", events[2].Content)
	})

	t.Run("システムプロンプトとユーザーメッセージが先頭に積まれる", func(t *testing.T) {
		model := &scriptedModel{responses: []*ModelResponse{{Content: "ok"}}}
		registry, err := NewRegistry()
		require.NoError(t, err)
		runner := NewRunner(model, registry)

		collectEvents(t, runner.Run(context.Background(), nil, "質問"))

		require.Len(t, model.calls, 1)
		messages := model.calls[0]
		require.GreaterOrEqual(t, len(messages), 2)
		assert.Equal(t, RoleSystem, messages[0].Role)
		assert.Equal(t, RoleUser, messages[len(messages)-1].Role)
		assert.Equal(t, "質問", messages[len(messages)-1].Content)
	})

	t.Run("履歴にシステムメッセージがあれば二重に積まない", func(t *testing.T) {
		model := &scriptedModel{responses: []*ModelResponse{{Content: "ok"}}}
		registry, err := NewRegistry()
		require.NoError(t, err)
		runner := NewRunner(model, registry)

		history := []Message{
			{Role: RoleSystem, Content: "カスタムシステム"},
			{Role: RoleUser, Content: "前の質問"},
			{Role: RoleAssistant, Content: "前の回答"},
		}
		collectEvents(t, runner.Run(context.Background(), history, "次の質問"))

		messages := model.calls[0]
		systemCount := 0
		for _, m := range messages {
			if m.Role == RoleSystem {
				systemCount++
			}
		}
		assert.Equal(t, 1, systemCount)
		assert.Equal(t, "カスタムシステム", messages[0].Content)
	})

	t.Run("ツール呼び出しを実行して履歴に反映し、次の推論へ進む", func(t *testing.T) {
		executions := 0
		registry, err := NewRegistry(countingTool("lookup", &executions))
		require.NoError(t, err)

		model := &scriptedModel{
			responses: []*ModelResponse{
				{ToolCalls: []ToolCall{{ID: "call-1", Name: "lookup", Arguments: `{}`}}},
				{Content: "ツール結果を踏まえた回答"},
			},
		}
		runner := NewRunner(model, registry)

		events := collectEvents(t, runner.Run(context.Background(), nil, "調べて"))

		require.Equal(t, []EventType{
			EventToolCallStart, EventToolCallArgs, EventToolCallEnd, EventRunFinished,
		}, eventTypes(events))
		assert.Equal(t, 1, executions)
		assert.Equal(t, "lookup", events[0].ToolName)
		assert.JSONEq(t, `{"tool":"lookup"}`, string(events[2].Result))

		// 2回目の推論にはアシスタントのツール呼び出しとツール結果が含まれる
		require.Len(t, model.calls, 2)
		second := model.calls[1]
		var sawAssistantCall, sawToolResult bool
		for _, m := range second {
			if m.Role == RoleAssistant && len(m.ToolCalls) > 0 {
				sawAssistantCall = true
			}
			if m.Role == RoleTool && m.ToolCallID == "call-1" {
				sawToolResult = true
			}
		}
		assert.True(t, sawAssistantCall)
		assert.True(t, sawToolResult)
	})

	t.Run("複数ツールのイベント順は要求順を保つ", func(t *testing.T) {
		var calls1, calls2 int
		registry, err := NewRegistry(countingTool("first", &calls1), countingTool("second", &calls2))
		require.NoError(t, err)

		model := &scriptedModel{
			responses: []*ModelResponse{
				{ToolCalls: []ToolCall{
					{ID: "c1", Name: "first", Arguments: `{}`},
					{ID: "c2", Name: "second", Arguments: `{}`},
				}},
				{Content: "done"},
			},
		}
		runner := NewRunner(model, registry)

		events := collectEvents(t, runner.Run(context.Background(), nil, "2つ実行して"))

		starts := make([]string, 0)
		ends := make([]string, 0)
		for _, ev := range events {
			switch ev.Type {
			case EventToolCallStart:
				starts = append(starts, ev.ToolName)
			case EventToolCallEnd:
				ends = append(ends, ev.ToolName)
			}
		}
		assert.Equal(t, []string{"first", "second"}, starts)
		assert.Equal(t, []string{"first", "second"}, ends)
	})

	t.Run("最大ステップ数に達したら打ち切りの最終回答を返す", func(t *testing.T) {
		executions := 0
		registry, err := NewRegistry(countingTool("loop", &executions))
		require.NoError(t, err)

		// 常にツール呼び出しを返すモデル
		loop := &ModelResponse{ToolCalls: []ToolCall{{ID: "c", Name: "loop", Arguments: `{}`}}}
		model := &scriptedModel{
			responses: []*ModelResponse{loop, loop, loop, loop, loop},
		}
		runner := NewRunner(model, registry, WithMaxSteps(3))

		events := collectEvents(t, runner.Run(context.Background(), nil, "無限に"))

		last := events[len(events)-1]
		assert.Equal(t, EventRunFinished, last.Type)
		assert.Contains(t, last.Content, "could not complete")
		assert.Equal(t, 3, executions)
	})

	t.Run("購読が遅くても終端イベントは失われない", func(t *testing.T) {
		// イベントバッファをデルタだけで埋め切った状態でも
		// run_finished はブロッキング送信で必ず届く
		deltas := make([]string, 16)
		for i := range deltas {
			deltas[i] = "d"
		}
		model := &scriptedModel{
			responses: []*ModelResponse{{Content: "最終回答"}},
			deltas:    [][]string{deltas},
		}
		registry, err := NewRegistry()
		require.NoError(t, err)
		runner := NewRunner(model, registry)

		events := runner.Run(context.Background(), nil, "質問")
		time.Sleep(300 * time.Millisecond)
		collected := collectEvents(t, events)

		deltaCount := 0
		for _, ev := range collected {
			if ev.Type == EventMessageDelta {
				deltaCount++
			}
		}
		assert.Equal(t, 16, deltaCount)
		require.NotEmpty(t, collected)
		last := collected[len(collected)-1]
		assert.Equal(t, EventRunFinished, last.Type)
		assert.Equal(t, "最終回答", last.Content)
	})

	t.Run("ツール実行中のキャンセルは run_cancelled で終端し推論を再開しない", func(t *testing.T) {
		started := make(chan struct{})
		blocking := &Tool{
			Name:        "slow",
			Description: "キャンセルまで完了しないツール",
			Schema:      map[string]any{"type": "object"},
			Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
		registry, err := NewRegistry(blocking)
		require.NoError(t, err)

		model := &scriptedModel{
			responses: []*ModelResponse{
				{ToolCalls: []ToolCall{{ID: "c1", Name: "slow", Arguments: `{}`}}},
				{Content: "来ないはず"},
			},
		}
		runner := NewRunner(model, registry)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		events := runner.Run(ctx, nil, "実行して")

		select {
		case <-started:
			cancel()
		case <-time.After(5 * time.Second):
			t.Fatal("ツールが開始されない")
		}
		collected := collectEvents(t, events)

		require.NotEmpty(t, collected)
		assert.Equal(t, EventRunCancelled, collected[len(collected)-1].Type)
		// キャンセル後に2回目の推論へ進まない
		assert.Len(t, model.calls, 1)
	})

	t.Run("キャンセルで run_cancelled を発行して停止する", func(t *testing.T) {
		block := make(chan struct{})
		model := &scriptedModel{
			responses: []*ModelResponse{{Content: "来ないはず"}},
			block:     block,
		}
		registry, err := NewRegistry()
		require.NoError(t, err)
		runner := NewRunner(model, registry)

		ctx, cancel := context.WithCancel(context.Background())
		events := runner.Run(ctx, nil, "質問")

		cancel()
		collected := collectEvents(t, events)

		require.NotEmpty(t, collected)
		assert.Equal(t, EventRunCancelled, collected[len(collected)-1].Type)
	})

	t.Run("ツールの失敗は構造化エラーとして次の推論に渡る", func(t *testing.T) {
		failing := &Tool{
			Name:        "broken",
			Description: "失敗する",
			Schema:      map[string]any{"type": "object"},
			Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
				return nil, assert.AnError
			},
		}
		registry, err := NewRegistry(failing)
		require.NoError(t, err)

		model := &scriptedModel{
			responses: []*ModelResponse{
				{ToolCalls: []ToolCall{{ID: "c1", Name: "broken", Arguments: `{}`}}},
				{Content: "エラーを踏まえた回答"},
			},
		}
		runner := NewRunner(model, registry)

		events := collectEvents(t, runner.Run(context.Background(), nil, "実行して"))

		assert.Equal(t, EventRunFinished, events[len(events)-1].Type)

		// ツール結果メッセージは {"error": ...} のJSON
		second := model.calls[1]
		var toolContent string
		for _, m := range second {
			if m.Role == RoleTool {
				toolContent = m.Content
			}
		}
		var payload map[string]string
		require.NoError(t, json.Unmarshal([]byte(toolContent), &payload))
		assert.NotEmpty(t, payload["error"])
	})
}

func TestRunner_Run_ConcurrentTools(t *testing.T) {
	var calls1, calls2 int
	registry, err := NewRegistry(countingTool("alpha", &calls1), countingTool("beta", &calls2))
	require.NoError(t, err)

	model := &scriptedModel{
		responses: []*ModelResponse{
			{ToolCalls: []ToolCall{
				{ID: "c1", Name: "alpha", Arguments: `{}`},
				{ID: "c2", Name: "beta", Arguments: `{}`},
			}},
			{Content: "done"},
		},
	}
	runner := NewRunner(model, registry, WithConcurrentTools(true))

	events := collectEvents(t, runner.Run(context.Background(), nil, "並行で"))

	// 並行実行でもイベントの発行順は要求順
	starts := make([]string, 0)
	ends := make([]string, 0)
	for _, ev := range events {
		switch ev.Type {
		case EventToolCallStart:
			starts = append(starts, ev.ToolName)
		case EventToolCallEnd:
			ends = append(ends, ev.ToolName)
		}
	}
	assert.Equal(t, []string{"alpha", "beta"}, starts)
	assert.Equal(t, []string{"alpha", "beta"}, ends)
	assert.Equal(t, 1, calls1)
	assert.Equal(t, 1, calls2)
	assert.Equal(t, EventRunFinished, events[len(events)-1].Type)
}
