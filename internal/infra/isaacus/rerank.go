package isaacus

import (
	"context"
	"fmt"

	"github.com/jinford/legal-rag/internal/core/refine"
)

// DefaultRerankModel はリランク未指定時のデフォルトモデル
const DefaultRerankModel = "kanon-2-reranker"

// Reranker は Isaacus API のクロスエンコーダでクエリと文書の組を再採点する
type Reranker struct {
	client *Client
	model  string
}

// RerankerOption は Reranker のオプション設定
type RerankerOption func(*Reranker)

// WithRerankModel はモデル名を上書きする
func WithRerankModel(model string) RerankerOption {
	return func(r *Reranker) {
		r.model = model
	}
}

// NewReranker は新しい Reranker を作成する
func NewReranker(client *Client, opts ...RerankerOption) *Reranker {
	r := &Reranker{
		client: client,
		model:  DefaultRerankModel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rerankRequest struct {
	Model string   `json:"model"`
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
	Usage   Usage          `json:"usage"`
}

// Rerank は texts を関連度順に並べ替えて返す
// APIの返却順が精緻化済みの関連度順。入力位置は OriginalIndex に保持する
func (r *Reranker) Rerank(ctx context.Context, query string, texts []string) ([]refine.RerankedDocument, error) {
	var resp rerankResponse
	err := r.client.post(ctx, "/rerankings", rerankRequest{
		Model: r.model,
		Query: query,
		Texts: texts,
	}, &resp)
	if err != nil {
		return nil, err
	}

	results := make([]refine.RerankedDocument, 0, len(resp.Results))
	for _, res := range resp.Results {
		if res.Index < 0 || res.Index >= len(texts) {
			return nil, fmt.Errorf("rerank index out of range: %d", res.Index)
		}
		results = append(results, refine.RerankedDocument{
			OriginalIndex:  res.Index,
			Content:        texts[res.Index],
			RelevanceScore: res.RelevanceScore,
		})
	}
	return results, nil
}

// インターフェース実装の確認
var _ refine.Reranker = (*Reranker)(nil)
