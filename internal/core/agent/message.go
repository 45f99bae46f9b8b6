package agent

import "context"

// Role はメッセージの発話者区分を表す
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall はモデルが要求したツール呼び出しを表す
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON文字列
}

// Message は会話履歴の1要素を表す
// 履歴は追記専用で、1ターンの Reasoning/Acting が完了するまで確定しない
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls はアシスタントのツール呼び出し要求（Role=assistant のみ）
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// ToolCallID はツール実行結果の対応付け（Role=tool のみ）
	ToolCallID string `json:"toolCallID,omitempty"`
}

// ToolDefinition はモデルに提示するツールの宣言を表す
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters は引数のJSONスキーマ
	Parameters map[string]any
}

// ModelResponse はモデル推論1回分の確定した応答を表す
type ModelResponse struct {
	Content string
	// ToolCalls が空の場合、Content が最終回答として扱われる
	ToolCalls  []ToolCall
	TokensUsed int
}

// ChatModel は言語モデル推論のインターフェース
// 応答テキストは確定を待たず onDelta で逐次通知される
type ChatModel interface {
	StreamCompletion(ctx context.Context, messages []Message, tools []ToolDefinition, onDelta func(delta string)) (*ModelResponse, error)
}
