package isaacus

import (
	"context"

	"github.com/jinford/legal-rag/internal/core/refine"
)

// DefaultExtractionModel は抽出型QA未指定時のデフォルトモデル
const DefaultExtractionModel = "kanon-answer-extractor"

// Extractor は Isaacus API でコンテキスト内の回答スパンを特定する
type Extractor struct {
	client *Client
	model  string
}

// ExtractorOption は Extractor のオプション設定
type ExtractorOption func(*Extractor)

// WithExtractionModel はモデル名を上書きする
func WithExtractionModel(model string) ExtractorOption {
	return func(e *Extractor) {
		e.model = model
	}
}

// NewExtractor は新しい Extractor を作成する
func NewExtractor(client *Client, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		client: client,
		model:  DefaultExtractionModel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type extractionRequest struct {
	Model string `json:"model"`
	Query string `json:"query"`
	Text  string `json:"text"`
	TopK  int    `json:"top_k"`
}

type extractedAnswer struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

type extractionResponse struct {
	Answers []extractedAnswer `json:"answers"`
	Usage   Usage             `json:"usage"`
}

// ExtractAnswer はコンテキスト内から質問への回答スパンを抽出する
// スコア（0〜1）は正規化したパーセント値（0〜100）に変換して返す
func (e *Extractor) ExtractAnswer(ctx context.Context, question, contextText string, topK int) ([]refine.Answer, error) {
	var resp extractionResponse
	err := e.client.post(ctx, "/extractions/qa", extractionRequest{
		Model: e.model,
		Query: question,
		Text:  contextText,
		TopK:  topK,
	}, &resp)
	if err != nil {
		return nil, err
	}

	answers := make([]refine.Answer, 0, len(resp.Answers))
	for _, a := range resp.Answers {
		answers = append(answers, refine.Answer{
			Text:        a.Text,
			Confidence:  a.Score * 100,
			StartOffset: a.Start,
			EndOffset:   a.End,
		})
	}
	return answers, nil
}

// インターフェース実装の確認
var _ refine.Extractor = (*Extractor)(nil)
