package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxSteps は Reasoning/Acting の最大反復回数
	// 無限ループ防止はループ自体ではなく呼び出し側の必須責務であり、
	// Runner はその既定値を提供する
	DefaultMaxSteps = 10

	// DefaultToolTimeout は1ツール呼び出しの上限時間
	// タイムアウトは構造化エラー結果としてモデルへ返り、ターンを塞がない
	DefaultToolTimeout = 30 * time.Second
)

// Runner はエージェントの実行ループ（状態機械）を提供する
//
// 状態は Reasoning（モデル推論）と Acting（ツール実行）の2つ。
// モデルがツール呼び出しを要求する限り交互に遷移し、
// ツール呼び出しのない応答を最終回答として終了する
type Runner struct {
	model       ChatModel
	registry    *Registry
	maxSteps    int
	toolTimeout time.Duration
	concurrent  bool
	logger      *slog.Logger
}

// RunnerOption は Runner のオプション設定
type RunnerOption func(*Runner)

// WithMaxSteps は最大反復回数を上書きする
func WithMaxSteps(n int) RunnerOption {
	return func(r *Runner) {
		r.maxSteps = n
	}
}

// WithToolTimeout はツール呼び出しのタイムアウトを上書きする
func WithToolTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.toolTimeout = d
	}
}

// WithConcurrentTools は1ターン内の複数ツール呼び出しを並行実行する
// イベントの発行順は並行時も要求順を維持する
func WithConcurrentTools(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.concurrent = enabled
	}
}

// WithRunnerLogger は Runner にロガーを設定する
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner は新しいRunnerを作成する
func NewRunner(model ChatModel, registry *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		model:       model,
		registry:    registry,
		maxSteps:    DefaultMaxSteps,
		toolTimeout: DefaultToolTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.maxSteps <= 0 {
		r.maxSteps = DefaultMaxSteps
	}
	return r
}

// Run は会話履歴と新しいユーザーメッセージで実行ループを開始し、
// イベント列を返す。チャネルは終端イベントの後にクローズされる
//
// ctx のキャンセルでループは速やかに停止し、run_cancelled を発行する。
// 実行中のツール呼び出しは完走を許すが、その結果は履歴に反映しない
func (r *Runner) Run(ctx context.Context, history []Message, userMessage string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		r.run(ctx, history, userMessage, events)
	}()
	return events
}

func (r *Runner) run(ctx context.Context, history []Message, userMessage string, events chan<- Event) {
	messages := make([]Message, 0, len(history)+2)
	if len(history) == 0 || history[0].Role != RoleSystem {
		messages = append(messages, Message{Role: RoleSystem, Content: SystemPrompt()})
	}
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: userMessage})

	defs := r.registry.Definitions()

	for step := 0; ; step++ {
		if ctx.Err() != nil {
			r.emitTerminal(events, Event{Type: EventRunCancelled})
			return
		}
		if step >= r.maxSteps {
			r.logger.Warn("max agent steps reached", "steps", step)
			r.emitTerminal(events, Event{
				Type:    EventRunFinished,
				Content: "The assistant could not complete this request within the allowed number of steps. Please try a narrower question.",
			})
			return
		}

		// Reasoning: モデル推論（応答テキストは逐次 message_delta で流す）
		resp, err := r.model.StreamCompletion(ctx, messages, defs, func(delta string) {
			r.emit(ctx, events, Event{Type: EventMessageDelta, Delta: delta})
		})
		if err != nil {
			if ctx.Err() != nil {
				r.emitTerminal(events, Event{Type: EventRunCancelled})
				return
			}
			r.logger.Error("model inference failed", "step", step, "error", err)
			r.emitTerminal(events, Event{Type: EventRunError, Err: fmt.Sprintf("model inference failed: %v", err)})
			return
		}

		// ツール呼び出しなし = 最終回答で終端
		if len(resp.ToolCalls) == 0 {
			r.emitTerminal(events, Event{Type: EventRunFinished, Content: resp.Content})
			return
		}

		// Acting: 要求された全ツールを実行する
		assistantMsg := Message{Role: RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
		toolMsgs, ok := r.executeToolCalls(ctx, events, resp.ToolCalls)
		if !ok {
			// キャンセル時は履歴を中途半端に更新しない
			r.emitTerminal(events, Event{Type: EventRunCancelled})
			return
		}

		// 全ツールの結果が確定してから履歴へ反映する
		messages = append(messages, assistantMsg)
		messages = append(messages, toolMsgs...)
	}
}

// executeToolCalls はモデルが要求したツール呼び出しを要求順に実行する
// 戻り値の ok が false の場合はキャンセルされており、結果は破棄される
func (r *Runner) executeToolCalls(ctx context.Context, events chan<- Event, calls []ToolCall) ([]Message, bool) {
	results := make([]json.RawMessage, len(calls))

	if r.concurrent && len(calls) > 1 {
		// 開始イベントは要求順に先出しし、実行のみ並行化する
		for _, call := range calls {
			r.emit(ctx, events, Event{Type: EventToolCallStart, ToolCallID: call.ID, ToolName: call.Name})
			r.emit(ctx, events, Event{Type: EventToolCallArgs, ToolCallID: call.ID, ToolName: call.Name, Arguments: call.Arguments})
		}

		g := new(errgroup.Group)
		for i, call := range calls {
			g.Go(func() error {
				results[i] = r.executeOne(ctx, call)
				return nil
			})
		}
		_ = g.Wait() // 個々の失敗は構造化エラー結果に畳み込まれている

		if ctx.Err() != nil {
			return nil, false
		}
		for i, call := range calls {
			r.emit(ctx, events, Event{Type: EventToolCallEnd, ToolCallID: call.ID, ToolName: call.Name, Result: results[i]})
		}
	} else {
		for i, call := range calls {
			if ctx.Err() != nil {
				return nil, false
			}
			r.emit(ctx, events, Event{Type: EventToolCallStart, ToolCallID: call.ID, ToolName: call.Name})
			r.emit(ctx, events, Event{Type: EventToolCallArgs, ToolCallID: call.ID, ToolName: call.Name, Arguments: call.Arguments})
			results[i] = r.executeOne(ctx, call)
			if ctx.Err() != nil {
				return nil, false
			}
			r.emit(ctx, events, Event{Type: EventToolCallEnd, ToolCallID: call.ID, ToolName: call.Name, Result: results[i]})
		}
	}

	toolMsgs := make([]Message, len(calls))
	for i, call := range calls {
		toolMsgs[i] = Message{
			Role:       RoleTool,
			Content:    string(results[i]),
			ToolCallID: call.ID,
		}
	}
	return toolMsgs, true
}

// executeOne は1つのツール呼び出しをタイムアウト付きで実行する
func (r *Runner) executeOne(ctx context.Context, call ToolCall) json.RawMessage {
	if r.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.toolTimeout)
		defer cancel()
	}

	start := time.Now()
	result := r.registry.Execute(ctx, call.Name, call.Arguments)
	r.logger.Info("tool call executed",
		"tool", call.Name,
		"duration", time.Since(start).String(),
	)
	return result
}

// emit はイベントを送出する。キャンセル済みの場合は送出を諦める
func (r *Runner) emit(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// emitTerminal は終端イベントを送出する
// チャネルはこの直後にクローズされ、購読側はクローズまで読み切る契約のため、
// ブロッキング送信でもデッドロックしない。キャンセル後でも必ず届ける
func (r *Runner) emitTerminal(events chan<- Event, ev Event) {
	events <- ev
}
