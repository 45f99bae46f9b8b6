package refine

// RerankedDocument はリランク結果の1件を表す
// OriginalIndex は入力時の位置（出典追跡用）
type RerankedDocument struct {
	OriginalIndex  int     `json:"originalIndex"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// Answer は抽出型QAで特定した回答スパンを表す
type Answer struct {
	Text string `json:"text"`
	// Confidence は正規化済みのパーセント値（0〜100）
	Confidence  float64 `json:"confidence"`
	StartOffset int     `json:"startOffset"`
	EndOffset   int     `json:"endOffset"`
}

// ExtractionResult は抽出型QAの結果を表す
type ExtractionResult struct {
	Answers []Answer `json:"answers"`
	// NoContext はコンテキストが空でリモート呼び出しを省略したことを示す
	NoContext bool `json:"noContext,omitempty"`
}

// LabelScore はゼロショット分類のラベルとスコアの組を表す
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ClassificationResult はゼロショット分類の結果を表す
type ClassificationResult struct {
	Labels []LabelScore `json:"labels"`
	// Primary は最高スコアのラベル。どのラベルも重要性カットオフを
	// 超えない場合は恣意的な選択を避けて LabelOther になる
	Primary string `json:"primary"`
}

// LabelOther はどのラベルもカットオフに届かない場合の番兵カテゴリ
const LabelOther = "other"

// MaterialityCutoff は主分類の採用基準。これを超えるスコアだけが採用される
const MaterialityCutoff = 0.3

// RiskLevel はリスク評価の3段階判定を表す
type RiskLevel string

const (
	RiskLevelHigh   RiskLevel = "high"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelLow    RiskLevel = "low"
)

// RiskAssessment はリスク分析の結果を表す
type RiskAssessment struct {
	RiskLevel RiskLevel    `json:"riskLevel"`
	Scores    []LabelScore `json:"scores"`
}
