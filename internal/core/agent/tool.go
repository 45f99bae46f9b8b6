package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool はエージェントが呼び出せる1つの機能を表す
// 名前・説明・引数スキーマ・実行子からなり、リクエストごとに
// 所有者/会話/案件スコープを閉じ込めて構築される
type Tool struct {
	// Name はモデルが指定するツール名
	Name string
	// Description はモデルが呼び出し判断に使う自然言語の説明
	Description string
	// Schema は引数のJSONスキーマ（draft 2020-12）
	Schema map[string]any
	// Execute は検証済みの引数で実行される
	// エラーを返してもツール境界の外へはそのまま伝播しない
	Execute func(ctx context.Context, args json.RawMessage) (any, error)
}

// errorResult はツール境界を越える構造化エラーペイロード
type errorResult struct {
	Error string `json:"error"`
}

// Registry はツールの静的な一覧と名前引きディスパッチを提供する
type Registry struct {
	tools    []*Tool
	byName   map[string]*Tool
	compiled map[string]*jsonschema.Schema
}

// NewRegistry はツール群からRegistryを構築し、各スキーマをコンパイルする
func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{
		tools:    tools,
		byName:   make(map[string]*Tool, len(tools)),
		compiled: make(map[string]*jsonschema.Schema, len(tools)),
	}

	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if _, ok := r.byName[t.Name]; ok {
			return nil, fmt.Errorf("duplicate tool name: %q", t.Name)
		}

		schemaJSON, err := json.Marshal(t.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal schema for tool %q: %w", t.Name, err)
		}

		compiler := jsonschema.NewCompiler()
		resource := t.Name + ".schema.json"
		if err := compiler.AddResource(resource, strings.NewReader(string(schemaJSON))); err != nil {
			return nil, fmt.Errorf("failed to add schema for tool %q: %w", t.Name, err)
		}
		sch, err := compiler.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for tool %q: %w", t.Name, err)
		}

		r.byName[t.Name] = t
		r.compiled[t.Name] = sch
	}

	return r, nil
}

// Definitions はモデルに提示するツール宣言の一覧を返す
func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Schema,
		})
	}
	return defs
}

// Names は登録済みツール名の一覧を返す
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name)
	}
	return names
}

// Execute はツールを名前で実行する
// 未知のツール・不正な引数・実行エラーのいずれも {"error": ...} の
// JSONとして返し、例外をモデル境界の外へ投げない
func (r *Registry) Execute(ctx context.Context, name, arguments string) json.RawMessage {
	tool, ok := r.byName[name]
	if !ok {
		return mustMarshal(errorResult{Error: fmt.Sprintf("unknown tool: %s", name)})
	}

	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}

	var decoded any
	if err := json.Unmarshal([]byte(arguments), &decoded); err != nil {
		return mustMarshal(errorResult{Error: fmt.Sprintf("invalid tool arguments: %v", err)})
	}

	if sch := r.compiled[name]; sch != nil {
		if err := sch.Validate(decoded); err != nil {
			return mustMarshal(errorResult{Error: fmt.Sprintf("tool arguments do not match schema: %v", err)})
		}
	}

	result, err := tool.Execute(ctx, json.RawMessage(arguments))
	if err != nil {
		return mustMarshal(errorResult{Error: err.Error()})
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return mustMarshal(errorResult{Error: fmt.Sprintf("failed to encode tool result: %v", err)})
	}
	return payload
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// errorResult のエンコードは失敗し得ない
		return json.RawMessage(`{"error":"internal encoding failure"}`)
	}
	return b
}
