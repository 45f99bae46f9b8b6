package isaacus

import (
	"context"
	"fmt"

	"github.com/jinford/legal-rag/internal/core/refine"
)

// DefaultClassifierModel はゼロショット分類未指定時のデフォルトモデル
const DefaultClassifierModel = "kanon-universal-classifier"

// Classifier は Isaacus API で任意の自然言語ラベルに対するゼロショット分類を行う
type Classifier struct {
	client *Client
	model  string
}

// ClassifierOption は Classifier のオプション設定
type ClassifierOption func(*Classifier)

// WithClassifierModel はモデル名を上書きする
func WithClassifierModel(model string) ClassifierOption {
	return func(c *Classifier) {
		c.model = model
	}
}

// NewClassifier は新しい Classifier を作成する
func NewClassifier(client *Client, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		client: client,
		model:  DefaultClassifierModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type classificationRequest struct {
	Model      string   `json:"model"`
	Text       string   `json:"text"`
	Labels     []string `json:"labels"`
	MultiLabel bool     `json:"multi_label"`
}

type classificationScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type classificationResponse struct {
	Classifications []classificationScore `json:"classifications"`
	Usage           Usage                 `json:"usage"`
}

// Classify は text を labels に対して採点する
// 結果は入力ラベルと同順・同数で返す
func (c *Classifier) Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]refine.LabelScore, error) {
	var resp classificationResponse
	err := c.client.post(ctx, "/classifications/universal", classificationRequest{
		Model:      c.model,
		Text:       text,
		Labels:     labels,
		MultiLabel: multiLabel,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Classifications) != len(labels) {
		return nil, fmt.Errorf("classification count mismatch: got %d, want %d", len(resp.Classifications), len(labels))
	}

	scores := make([]refine.LabelScore, len(labels))
	for i, cs := range resp.Classifications {
		scores[i] = refine.LabelScore{
			Label: labels[i],
			Score: cs.Score,
		}
	}
	return scores, nil
}

// インターフェース実装の確認
var _ refine.Classifier = (*Classifier)(nil)
