package agent

import "encoding/json"

// EventType は実行ループが発行するイベントの種別を表す
type EventType string

const (
	// EventMessageDelta はモデル応答テキストの増分
	EventMessageDelta EventType = "message_delta"
	// EventToolCallStart はツール実行の開始
	EventToolCallStart EventType = "tool_call_start"
	// EventToolCallArgs はツールに渡された引数（検証済み）
	EventToolCallArgs EventType = "tool_call_args"
	// EventToolCallEnd はツール実行の完了（成功・構造化エラーとも）
	EventToolCallEnd EventType = "tool_call_end"
	// EventRunFinished は最終回答の確定
	EventRunFinished EventType = "run_finished"
	// EventRunError は実行ループ自体の失敗（設定エラー・モデル呼び出し失敗）
	EventRunError EventType = "run_error"
	// EventRunCancelled は外部キャンセルによる終了
	EventRunCancelled EventType = "run_cancelled"
)

// Event は実行ループが発行するストリーミングイベントを表す
// 呼び出し側はこの列を購読してライブトランスクリプトを描画できる
type Event struct {
	Type EventType `json:"type"`

	// Delta は message_delta の増分テキスト
	Delta string `json:"delta,omitempty"`

	// ツール呼び出し関連（tool_call_* のみ）
	ToolCallID string          `json:"toolCallID,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Arguments  string          `json:"arguments,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`

	// Content は run_finished の最終回答テキスト
	Content string `json:"content,omitempty"`

	// Err は run_error の失敗内容
	Err string `json:"error,omitempty"`
}
