package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() *Tool {
	return &Tool{
		Name:        "echo",
		Description: "入力をそのまま返す",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required":             []string{"text"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var parsed struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(args, &parsed); err != nil {
				return nil, err
			}
			return map[string]string{"echo": parsed.Text}, nil
		},
	}
}

func TestNewRegistry(t *testing.T) {
	t.Run("ツールを登録できる", func(t *testing.T) {
		registry, err := NewRegistry(echoTool())
		require.NoError(t, err)
		assert.Equal(t, []string{"echo"}, registry.Names())
	})

	t.Run("名前の重複はエラー", func(t *testing.T) {
		_, err := NewRegistry(echoTool(), echoTool())
		assert.Error(t, err)
	})

	t.Run("名前なしのツールはエラー", func(t *testing.T) {
		_, err := NewRegistry(&Tool{Schema: map[string]any{"type": "object"}})
		assert.Error(t, err)
	})
}

func TestRegistry_Definitions(t *testing.T) {
	registry, err := NewRegistry(echoTool())
	require.NoError(t, err)

	defs := registry.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "object", defs[0].Parameters["type"])
}

func TestRegistry_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("検証済みの引数でツールが実行される", func(t *testing.T) {
		registry, err := NewRegistry(echoTool())
		require.NoError(t, err)

		result := registry.Execute(ctx, "echo", `{"text":"hello"}`)
		assert.JSONEq(t, `{"echo":"hello"}`, string(result))
	})

	t.Run("未知のツールは構造化エラーになる", func(t *testing.T) {
		registry, err := NewRegistry(echoTool())
		require.NoError(t, err)

		result := registry.Execute(ctx, "nonexistent", `{}`)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(result, &payload))
		assert.Contains(t, payload["error"], "unknown tool")
	})

	t.Run("JSONとして壊れた引数は構造化エラーになる", func(t *testing.T) {
		registry, err := NewRegistry(echoTool())
		require.NoError(t, err)

		result := registry.Execute(ctx, "echo", `{"text":`)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(result, &payload))
		assert.Contains(t, payload["error"], "invalid tool arguments")
	})

	t.Run("スキーマ違反の引数は構造化エラーになる", func(t *testing.T) {
		registry, err := NewRegistry(echoTool())
		require.NoError(t, err)

		// required の text がない
		result := registry.Execute(ctx, "echo", `{}`)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(result, &payload))
		assert.Contains(t, payload["error"], "schema")
	})

	t.Run("未知のプロパティはスキーマで拒否される", func(t *testing.T) {
		registry, err := NewRegistry(echoTool())
		require.NoError(t, err)

		result := registry.Execute(ctx, "echo", `{"text":"a","extra":1}`)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(result, &payload))
		assert.Contains(t, payload["error"], "schema")
	})

	t.Run("実行子のエラーは構造化エラーに変換される", func(t *testing.T) {
		failing := &Tool{
			Name:        "failing",
			Description: "常に失敗する",
			Schema:      map[string]any{"type": "object"},
			Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
				return nil, errors.New("backend unavailable")
			},
		}
		registry, err := NewRegistry(failing)
		require.NoError(t, err)

		result := registry.Execute(ctx, "failing", `{}`)

		var payload map[string]string
		require.NoError(t, json.Unmarshal(result, &payload))
		assert.Equal(t, "backend unavailable", payload["error"])
	})

	t.Run("空の引数は空オブジェクトとして扱う", func(t *testing.T) {
		noArgs := &Tool{
			Name:        "no_args",
			Description: "引数なし",
			Schema:      map[string]any{"type": "object"},
			Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
				return map[string]bool{"ok": true}, nil
			},
		}
		registry, err := NewRegistry(noArgs)
		require.NoError(t, err)

		result := registry.Execute(ctx, "no_args", "")
		assert.JSONEq(t, `{"ok":true}`, string(result))
	})
}
