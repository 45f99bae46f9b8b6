package isaacus

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jinford/legal-rag/internal/core/ingestion"
	"github.com/jinford/legal-rag/internal/core/search"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "kanon-2-embedder"
	// DefaultEmbeddingDimension はデフォルトのベクトル次元
	DefaultEmbeddingDimension = 1792
	// DefaultEmbeddingBatchSize は1リクエストに載せるテキスト数の上限
	DefaultEmbeddingBatchSize = 32

	// タスク識別子: 検索品質のためドキュメントとクエリで埋め込みモードが異なる
	taskRetrievalDocument = "retrieval/document"
	taskRetrievalQuery    = "retrieval/query"
)

// Embedder は Isaacus API を使用してテキストをベクトルに変換する
type Embedder struct {
	client    *Client
	model     string
	dimension int
	batchSize int
}

type embedderOptions struct {
	model     string
	dimension int
	batchSize int
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithEmbeddingBatchSize はサブバッチのサイズを上書きする
func WithEmbeddingBatchSize(batchSize int) EmbedderOption {
	return func(o *embedderOptions) {
		o.batchSize = batchSize
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(client *Client, opts ...EmbedderOption) *Embedder {
	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
		batchSize: DefaultEmbeddingBatchSize,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.batchSize <= 0 {
		options.batchSize = DefaultEmbeddingBatchSize
	}

	return &Embedder{
		client:    client,
		model:     options.model,
		dimension: options.dimension,
		batchSize: options.batchSize,
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Texts      []string `json:"texts"`
	Task       string   `json:"task"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type embeddingResponse struct {
	Embeddings []embeddingData `json:"embeddings"`
	Usage      Usage           `json:"usage"`
}

// EmbedDocuments はドキュメント用モードで複数テキストのEmbeddingを生成する
//
// バッチ上限を超える入力はサブバッチに分割して並行ディスパッチし、
// 結果は元の入力順に再構成する。いずれかのサブバッチが失敗した場合は
// 呼び出し全体が失敗し、部分的な結果は返さない。
// 空の入力はネットワーク呼び出しなしで即座に空を返す
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vectors, err := e.embed(gctx, texts[start:end], taskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("batch [%d:%d] failed: %w", start, end, err)
			}
			copy(results[start:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}

	return results, nil
}

// EmbedQuery はクエリ用モードで単一テキストのEmbeddingを生成する
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("query text is required")
	}

	vectors, err := e.embed(ctx, []string{text}, taskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("unexpected embedding count: got %d, want 1", len(vectors))
	}
	return vectors[0], nil
}

// embed は1サブバッチ分のEmbeddingを生成する
func (e *Embedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	var resp embeddingResponse
	err := e.client.post(ctx, "/embeddings", embeddingRequest{
		Model:      e.model,
		Texts:      texts,
		Task:       task,
		Dimensions: e.dimension,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Embeddings {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index out of range: %d", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return vectors, nil
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// インターフェース実装の確認
var (
	_ ingestion.Embedder   = (*Embedder)(nil)
	_ search.QueryEmbedder = (*Embedder)(nil)
)
