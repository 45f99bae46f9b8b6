package refine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Reranker はクエリとチャンクの組をクロスエンコーダで再採点するインターフェース
type Reranker interface {
	// Rerank は texts を関連度の高い順に並べ替えて返す
	// 各結果は入力時の位置を OriginalIndex として保持する
	Rerank(ctx context.Context, query string, texts []string) ([]RerankedDocument, error)
}

// Extractor は抽出型QAのインターフェース
type Extractor interface {
	// ExtractAnswer は context 内から question への回答スパンを特定する
	ExtractAnswer(ctx context.Context, question, contextText string, topK int) ([]Answer, error)
}

// Classifier はゼロショット分類のインターフェース
type Classifier interface {
	// Classify は text を labels に対して採点する
	// 結果は入力ラベルと同順・同数で返す
	Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]LabelScore, error)
}

// riskLabel はリスク分類タクソノミの1項目
type riskLabel struct {
	name      string
	statement string
}

// riskTaxonomy は契約条項のリスク判定に使う固定ラベル集合
// 判定は high_risk → medium_risk の順に閾値 0.5 で評価する
var riskTaxonomy = []riskLabel{
	{
		name:      "high_risk",
		statement: "This clause exposes a party to uncapped liability, broad indemnification, unilateral termination rights, or waiver of material legal protections.",
	},
	{
		name:      "medium_risk",
		statement: "This clause imposes notable obligations or restrictions, such as exclusivity, automatic renewal, or liquidated damages, that merit attorney review.",
	},
	{
		name:      "low_risk",
		statement: "This clause is standard boilerplate with customary terms and no unusual burden on either party.",
	},
}

const riskThreshold = 0.5

// Service は検索結果の精緻化（リランク・抽出・分類・リスク分析）を提供する
// いずれの操作もローカル状態を持たない
type Service struct {
	reranker   Reranker
	extractor  Extractor
	classifier Classifier
	logger     *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithRefineLogger は Service にロガーを設定する
func WithRefineLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(reranker Reranker, extractor Extractor, classifier Classifier, opts ...ServiceOption) *Service {
	svc := &Service{
		reranker:   reranker,
		extractor:  extractor,
		classifier: classifier,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Rerank はクエリに対して documents を再採点し、上位 topN 件を返す
// documents が空の場合はリモートを呼ばずに空の結果を返す
func (s *Service) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankedDocument, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if len(documents) == 0 {
		return []RerankedDocument{}, nil
	}

	results, err := s.reranker.Rerank(ctx, query, documents)
	if err != nil {
		return nil, fmt.Errorf("rerank failed: %w", err)
	}

	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// ExtractAnswer は contextText 内から question への回答スパンを抽出する
// 空白のみのコンテキストはリモートを呼ばず NoContext の結果に短絡する
func (s *Service) ExtractAnswer(ctx context.Context, question, contextText string, topK int) (*ExtractionResult, error) {
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if strings.TrimSpace(contextText) == "" {
		return &ExtractionResult{Answers: []Answer{}, NoContext: true}, nil
	}

	if topK <= 0 {
		topK = 1
	}

	answers, err := s.extractor.ExtractAnswer(ctx, question, contextText, topK)
	if err != nil {
		return nil, fmt.Errorf("answer extraction failed: %w", err)
	}

	return &ExtractionResult{Answers: answers}, nil
}

// Classify は text を任意の自然言語ラベルに対してゼロショット分類する
// どのラベルもカットオフ（0.3）を超えない場合、主分類は LabelOther になる
func (s *Service) Classify(ctx context.Context, text string, labels []string, multiLabel bool) (*ClassificationResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("at least one label is required")
	}

	scores, err := s.classifier.Classify(ctx, text, labels, multiLabel)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	primary := LabelOther
	best := -1.0
	for _, ls := range scores {
		if ls.Score > best {
			best = ls.Score
			if ls.Score > MaterialityCutoff {
				primary = ls.Label
			}
		}
	}

	return &ClassificationResult{
		Labels:  scores,
		Primary: primary,
	}, nil
}

// AnalyzeRisk は固定タクソノミに対する分類からリスク3段階判定を導出する
// high_risk のスコアが 0.5 を超えれば high、次に medium_risk を評価し、
// いずれも超えなければ low
func (s *Service) AnalyzeRisk(ctx context.Context, text string) (*RiskAssessment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	statements := make([]string, len(riskTaxonomy))
	for i, rl := range riskTaxonomy {
		statements[i] = rl.statement
	}

	rawScores, err := s.classifier.Classify(ctx, text, statements, true)
	if err != nil {
		return nil, fmt.Errorf("risk classification failed: %w", err)
	}
	if len(rawScores) != len(riskTaxonomy) {
		return nil, fmt.Errorf("unexpected classification result count: got %d, want %d", len(rawScores), len(riskTaxonomy))
	}

	scores := make([]LabelScore, len(riskTaxonomy))
	byName := make(map[string]float64, len(riskTaxonomy))
	for i, rl := range riskTaxonomy {
		scores[i] = LabelScore{Label: rl.name, Score: rawScores[i].Score}
		byName[rl.name] = rawScores[i].Score
	}

	level := RiskLevelLow
	if byName["high_risk"] > riskThreshold {
		level = RiskLevelHigh
	} else if byName["medium_risk"] > riskThreshold {
		level = RiskLevelMedium
	}

	s.logger.Info("risk analysis completed",
		"riskLevel", string(level),
		"highRisk", byName["high_risk"],
		"mediumRisk", byName["medium_risk"],
	)

	return &RiskAssessment{
		RiskLevel: level,
		Scores:    scores,
	}, nil
}
