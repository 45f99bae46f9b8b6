package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jinford/legal-rag/internal/core/agent"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	// ストリーミング応答全体をカバーするため長めに取る
	DefaultTimeout = 120 * time.Second

	// MaxRetries はレート制限エラー時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

	// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ChatClient は OpenAI API を使用した対話モデル実装
// ツール呼び出しとストリーミングに対応する
type ChatClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// ChatClientOption は ChatClient のオプション設定
type ChatClientOption func(*ChatClient)

// WithChatModel はモデル名を上書きする
func WithChatModel(model string) ChatClientOption {
	return func(c *ChatClient) {
		c.model = model
	}
}

// WithChatTimeout はAPIコールのタイムアウトを上書きする
func WithChatTimeout(timeout time.Duration) ChatClientOption {
	return func(c *ChatClient) {
		c.timeout = timeout
	}
}

// NewChatClient は新しい ChatClient を作成する
func NewChatClient(apiKey string, opts ...ChatClientOption) (*ChatClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	c := &ChatClient{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   DefaultModel,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ModelName はモデル名を返す
func (c *ChatClient) ModelName() string {
	return c.model
}

// StreamCompletion はメッセージ履歴とツール宣言でモデル推論を実行する
// 応答テキストは onDelta で逐次通知され、確定した応答を返す
func (c *ChatClient) StreamCompletion(ctx context.Context, messages []agent.Message, tools []agent.ToolDefinition, onDelta func(delta string)) (*agent.ModelResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt-1))) * BaseBackoff
			if backoffDuration > MaxBackoff {
				backoffDuration = MaxBackoff
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		resp, emitted, err := c.streamOnce(ctx, params, onDelta)
		if err != nil {
			lastErr = err
			// 増分を1件でも流した後のリトライは重複出力になるため行わない
			if isRateLimitError(err) && !emitted {
				continue
			}
			return nil, fmt.Errorf("OpenAI API call failed: %w", err)
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func (c *ChatClient) streamOnce(ctx context.Context, params openai.ChatCompletionNewParams, onDelta func(delta string)) (*agent.ModelResponse, bool, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	emitted := false

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			emitted = true
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, emitted, err
	}

	if len(acc.Choices) == 0 {
		return nil, emitted, fmt.Errorf("no completion choices returned")
	}

	msg := acc.Choices[0].Message
	toolCalls := make([]agent.ToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		toolCalls = append(toolCalls, agent.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &agent.ModelResponse{
		Content:    msg.Content,
		ToolCalls:  toolCalls,
		TokensUsed: int(acc.Usage.TotalTokens),
	}, emitted, nil
}

// convertMessages はドメインのメッセージ履歴をAPIパラメータへ変換する
func convertMessages(messages []agent.Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case agent.RoleSystem:
			converted = append(converted, openai.SystemMessage(m.Content))
		case agent.RoleUser:
			converted = append(converted, openai.UserMessage(m.Content))
		case agent.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				converted = append(converted, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				}
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				})
			}
			converted = append(converted, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case agent.RoleTool:
			converted = append(converted, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return converted
}

// convertTools はツール宣言をAPIのfunction定義へ変換する
func convertTools(tools []agent.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	converted := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		converted = append(converted, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  shared.FunctionParameters(t.Parameters),
		}))
	}
	return converted
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	return false
}

// インターフェース実装の確認
var _ agent.ChatModel = (*ChatClient)(nil)
