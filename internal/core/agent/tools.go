package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jinford/legal-rag/internal/core/document"
	"github.com/jinford/legal-rag/internal/core/memory"
	"github.com/jinford/legal-rag/internal/core/plan"
	"github.com/jinford/legal-rag/internal/core/refine"
	"github.com/jinford/legal-rag/internal/core/search"
)

// Scope は1リクエスト分のテナントスコープを表す
// すべてのツールはこのスコープを閉じ込めて構築され、
// 呼び出し側（モデル）から所有者やテナントの識別子を受け取らない
type Scope struct {
	OwnerUserID    uuid.UUID
	ConversationID uuid.UUID
	MatterID       *uuid.UUID
}

// ToolDeps はツール構築に必要なサービス群を表す
type ToolDeps struct {
	Search    *search.SearchService
	Refine    *refine.Service
	Documents document.Repository
	Todos     *plan.TodoService
	Memory    *memory.Service
}

// BuildTools はスコープ済みのツール一覧を構築する
func BuildTools(deps ToolDeps, scope Scope) []*Tool {
	return []*Tool{
		searchDocumentsTool(deps, scope),
		getDocumentInfoTool(deps, scope),
		listDocumentsTool(deps, scope),
		rerankResultsTool(deps),
		extractAnswerTool(deps),
		classifyClausesTool(deps),
		analyzeRiskTool(deps),
		addTodoTool(deps, scope),
		updateTodoTool(deps, scope),
		getTodosTool(deps, scope),
		storeMemoryTool(deps, scope),
		recallMemoryTool(deps, scope),
		listMemoriesTool(deps, scope),
	}
}

func searchDocumentsTool(deps ToolDeps, scope Scope) *Tool {
	type args struct {
		Query     string  `json:"query"`
		Limit     int     `json:"limit"`
		Threshold float64 `json:"threshold"`
		Rerank    bool    `json:"rerank"`
	}
	return &Tool{
		Name:        "search_documents",
		Description: "Semantic search over the user's uploaded legal documents. Returns the most relevant text chunks with similarity scores. Use this before answering any question about the documents.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":     map[string]any{"type": "string", "description": "Natural-language search query"},
				"limit":     map[string]any{"type": "integer", "minimum": 1, "maximum": 50, "description": "Maximum number of chunks to return (default 10)"},
				"threshold": map[string]any{"type": "number", "minimum": 0, "maximum": 1, "description": "Minimum similarity score (default 0)"},
				"rerank":    map[string]any{"type": "boolean", "description": "Re-score the hits with the cross-encoder reranker"},
			},
			"required":             []any{"query"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}

			results, err := deps.Search.Search(ctx, search.SearchParams{
				OwnerUserID: scope.OwnerUserID,
				MatterID:    scope.MatterID,
				Query:       a.Query,
				Limit:       a.Limit,
				Threshold:   a.Threshold,
			})
			if err != nil {
				return nil, err
			}

			if a.Rerank && len(results) > 0 {
				texts := make([]string, len(results))
				for i, r := range results {
					texts[i] = r.Content
				}
				reranked, err := deps.Refine.Rerank(ctx, a.Query, texts, len(texts))
				if err != nil {
					return nil, err
				}
				reordered := make([]*search.SearchResult, 0, len(reranked))
				for _, rd := range reranked {
					hit := results[rd.OriginalIndex]
					hit.Score = rd.RelevanceScore
					reordered = append(reordered, hit)
				}
				results = reordered
			}

			return map[string]any{"results": results, "count": len(results)}, nil
		},
	}
}

func getDocumentInfoTool(deps ToolDeps, scope Scope) *Tool {
	type args struct {
		DocumentID string `json:"document_id"`
	}
	return &Tool{
		Name:        "get_document_info",
		Description: "Fetch name, processing status and chunk count for one of the user's documents.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"document_id": map[string]any{"type": "string", "description": "Document UUID"},
			},
			"required":             []any{"document_id"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			docID, err := uuid.Parse(a.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("invalid document_id: %w", err)
			}

			doc, err := deps.Documents.GetByID(ctx, scope.OwnerUserID, docID)
			if errors.Is(err, document.ErrNotFound) {
				// 汎用的な失敗と区別できる専用メッセージを返す
				return nil, fmt.Errorf("document not found: %s", a.DocumentID)
			}
			if err != nil {
				return nil, err
			}
			return doc, nil
		},
	}
}

func listDocumentsTool(deps ToolDeps, scope Scope) *Tool {
	return &Tool{
		Name:        "list_documents",
		Description: "List the user's documents in the current matter scope with their processing status.",
		Schema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			docs, err := deps.Documents.ListByOwner(ctx, scope.OwnerUserID, scope.MatterID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"documents": docs, "count": len(docs)}, nil
		},
	}
}

func rerankResultsTool(deps ToolDeps) *Tool {
	type args struct {
		Query     string   `json:"query"`
		Documents []string `json:"documents"`
		TopN      int      `json:"top_n"`
	}
	return &Tool{
		Name:        "rerank_results",
		Description: "Re-score a list of text passages against a query with a cross-encoder and return them in refined relevance order.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":     map[string]any{"type": "string"},
				"documents": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"top_n":     map[string]any{"type": "integer", "minimum": 1},
			},
			"required":             []any{"query", "documents"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			results, err := deps.Refine.Rerank(ctx, a.Query, a.Documents, a.TopN)
			if err != nil {
				return nil, err
			}
			return map[string]any{"results": results}, nil
		},
	}
}

func extractAnswerTool(deps ToolDeps) *Tool {
	type args struct {
		Question string `json:"question"`
		Context  string `json:"context"`
		TopK     int    `json:"top_k"`
	}
	return &Tool{
		Name:        "extract_answer",
		Description: "Locate the exact answer span for a question inside a given passage, with confidence (0-100) and character offsets.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{"type": "string"},
				"context":  map[string]any{"type": "string", "description": "Passage to extract the answer from"},
				"top_k":    map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
			},
			"required":             []any{"question", "context"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			return deps.Refine.ExtractAnswer(ctx, a.Question, a.Context, a.TopK)
		},
	}
}

func classifyClausesTool(deps ToolDeps) *Tool {
	type args struct {
		Text       string   `json:"text"`
		Labels     []string `json:"labels"`
		MultiLabel bool     `json:"multi_label"`
	}
	return &Tool{
		Name:        "classify_clauses",
		Description: "Zero-shot classification of contract text against arbitrary natural-language labels. Returns per-label scores and a primary classification.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text":        map[string]any{"type": "string"},
				"labels":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "minItems": 1},
				"multi_label": map[string]any{"type": "boolean"},
			},
			"required":             []any{"text", "labels"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			return deps.Refine.Classify(ctx, a.Text, a.Labels, a.MultiLabel)
		},
	}
}

func analyzeRiskTool(deps ToolDeps) *Tool {
	type args struct {
		Text string `json:"text"`
	}
	return &Tool{
		Name:        "analyze_risk",
		Description: "Assess a contract clause against the firm's risk taxonomy and return a high/medium/low risk verdict with per-label scores.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string", "description": "Clause text to assess"},
			},
			"required":             []any{"text"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			return deps.Refine.AnalyzeRisk(ctx, a.Text)
		},
	}
}

func addTodoTool(deps ToolDeps, scope Scope) *Tool {
	type args struct {
		Content  string `json:"content"`
		ParentID string `json:"parent_id"`
	}
	return &Tool{
		Name:        "add_todo",
		Description: "Add a task to the plan for this conversation. Use when breaking a request into multiple steps.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content":   map[string]any{"type": "string"},
				"parent_id": map[string]any{"type": "string", "description": "Optional parent task UUID for subtasks"},
			},
			"required":             []any{"content"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			var parentID *uuid.UUID
			if a.ParentID != "" {
				id, err := uuid.Parse(a.ParentID)
				if err != nil {
					return nil, fmt.Errorf("invalid parent_id: %w", err)
				}
				parentID = &id
			}
			return deps.Todos.Add(ctx, scope.ConversationID, a.Content, parentID)
		},
	}
}

func updateTodoTool(deps ToolDeps, scope Scope) *Tool {
	type args struct {
		TodoID string `json:"todo_id"`
		Status string `json:"status"`
		Result string `json:"result"`
	}
	return &Tool{
		Name:        "update_todo",
		Description: "Transition a task's status (pending -> in_progress -> completed, or cancel it), optionally recording a result.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"todo_id": map[string]any{"type": "string"},
				"status":  map[string]any{"type": "string", "enum": []any{"pending", "in_progress", "completed", "cancelled"}},
				"result":  map[string]any{"type": "string"},
			},
			"required":             []any{"todo_id", "status"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			todoID, err := uuid.Parse(a.TodoID)
			if err != nil {
				return nil, fmt.Errorf("invalid todo_id: %w", err)
			}
			var result *string
			if a.Result != "" {
				result = &a.Result
			}
			return deps.Todos.UpdateStatus(ctx, scope.ConversationID, todoID, plan.TodoStatus(a.Status), result)
		},
	}
}

func getTodosTool(deps ToolDeps, scope Scope) *Tool {
	type args struct {
		IncludeCompleted bool `json:"include_completed"`
	}
	return &Tool{
		Name:        "get_todos",
		Description: "List the plan for this conversation in order. By default only pending and in-progress tasks are returned.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"include_completed": map[string]any{"type": "boolean"},
			},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			var (
				items []*plan.TodoItem
				err   error
			)
			if a.IncludeCompleted {
				items, err = deps.Todos.GetAll(ctx, scope.ConversationID)
			} else {
				items, err = deps.Todos.GetPending(ctx, scope.ConversationID)
			}
			if err != nil {
				return nil, err
			}
			return map[string]any{"todos": items, "count": len(items)}, nil
		},
	}
}

func storeMemoryTool(deps ToolDeps, scope Scope) *Tool {
	type args struct {
		Key       string          `json:"key"`
		Value     json.RawMessage `json:"value"`
		Namespace string          `json:"namespace"`
	}
	return &Tool{
		Name:        "store_memory",
		Description: "Persist a fact about the user or their matters across conversations. Overwrites any existing value for the same key.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":       map[string]any{"type": "string"},
				"value":     map[string]any{"description": "Arbitrary JSON value to store"},
				"namespace": map[string]any{"type": "string", "description": "Category, default \"default\""},
			},
			"required":             []any{"key", "value"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			return deps.Memory.Set(ctx, scope.OwnerUserID, a.Key, a.Value, a.Namespace)
		},
	}
}

func recallMemoryTool(deps ToolDeps, scope Scope) *Tool {
	type args struct {
		Key       string `json:"key"`
		Namespace string `json:"namespace"`
	}
	return &Tool{
		Name:        "recall_memory",
		Description: "Recall a previously stored fact by key. Returns found=false when nothing is stored under the key.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":       map[string]any{"type": "string"},
				"namespace": map[string]any{"type": "string"},
			},
			"required":             []any{"key"},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			item, err := deps.Memory.Get(ctx, scope.OwnerUserID, a.Key, a.Namespace)
			if errors.Is(err, memory.ErrNotFound) {
				return map[string]any{"found": false, "key": a.Key}, nil
			}
			if err != nil {
				return nil, err
			}
			return map[string]any{"found": true, "key": item.Key, "value": item.Value, "namespace": item.Namespace}, nil
		},
	}
}

func listMemoriesTool(deps ToolDeps, scope Scope) *Tool {
	type args struct {
		Namespace string `json:"namespace"`
		Prefix    string `json:"prefix"`
	}
	return &Tool{
		Name:        "list_memories",
		Description: "List stored memory keys in a namespace, optionally filtered by key prefix.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"namespace": map[string]any{"type": "string"},
				"prefix":    map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		},
		Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a args
			if err := json.Unmarshal(raw, &a); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			var (
				keys []string
				err  error
			)
			if a.Prefix != "" {
				keys, err = deps.Memory.Search(ctx, scope.OwnerUserID, a.Prefix, a.Namespace)
			} else {
				keys, err = deps.Memory.List(ctx, scope.OwnerUserID, a.Namespace)
			}
			if err != nil {
				return nil, err
			}
			namespaces, err := deps.Memory.Namespaces(ctx, scope.OwnerUserID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"keys": keys, "namespaces": namespaces}, nil
		},
	}
}
