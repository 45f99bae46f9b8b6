package ingestion

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

var (
	// ErrInvalidConfig はチャンク設定が不正な場合に返される
	ErrInvalidConfig = errors.New("invalid chunker config")
)

// ChunkerConfig はチャンク分割の設定を表す
type ChunkerConfig struct {
	// MaxChunkChars はチャンクの最大文字数（デフォルト: 1500）
	MaxChunkChars int
	// OverlapChars は隣接チャンク間で重複させる文字数（デフォルト: 200）
	// MaxChunkChars 未満であること（そうでなければ前進が保証されない）
	OverlapChars int
}

// DefaultChunkerConfig はデフォルトのチャンク設定を返す
func DefaultChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		MaxChunkChars: 1500,
		OverlapChars:  200,
	}
}

// Piece はチャンク分割の結果1件を表す
// ChunkIndex・文字オフセットを保持し、抽出回答の出典追跡を可能にする
type Piece struct {
	Index       int
	Content     string
	StartOffset int
	EndOffset   int
	Tokens      int
}

// Chunker はドキュメントのテキストを重複つき断片に分割する
// 同一の入力と設定に対して常に同一の境界を返す（再処理の冪等性のため）
type Chunker struct {
	encoder *tiktoken.Tiktoken
	config  *ChunkerConfig
}

// NewChunker は新しいChunkerを作成する
func NewChunker(cfg *ChunkerConfig) (*Chunker, error) {
	if cfg == nil {
		cfg = DefaultChunkerConfig()
	}
	if cfg.MaxChunkChars <= 0 {
		return nil, fmt.Errorf("%w: maxChunkChars must be positive (got %d)", ErrInvalidConfig, cfg.MaxChunkChars)
	}
	if cfg.OverlapChars < 0 || cfg.OverlapChars >= cfg.MaxChunkChars {
		return nil, fmt.Errorf("%w: overlapChars must be in [0, maxChunkChars) (got %d)", ErrInvalidConfig, cfg.OverlapChars)
	}

	// cl100k_baseエンコーダを使用（トークン数の記録用）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Chunker{
		encoder: encoder,
		config:  cfg,
	}, nil
}

// Chunk はテキストを分割する
// 空テキストはエラーではなく0件を返す。空のチャンクは生成しない
func (c *Chunker) Chunk(text string) []*Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)

	var pieces []*Piece
	start := 0
	for start < n {
		end := start + c.config.MaxChunkChars
		if end >= n {
			end = n
		} else {
			end = c.findBreak(runes, start, end)
		}

		// 空白のみの断片は出力しない（オフセットは元テキスト基準を維持）
		s, e := trimBounds(runes[start:end])
		if e > s {
			content := string(runes[start+s : start+e])
			pieces = append(pieces, &Piece{
				Index:       len(pieces),
				Content:     content,
				StartOffset: start + s,
				EndOffset:   start + e,
				Tokens:      len(c.encoder.Encode(content, nil, nil)),
			})
		}

		if end >= n {
			break
		}

		next := end - c.config.OverlapChars
		if next <= start {
			// オーバーラップが境界調整で相殺された場合でも前進を保証する
			next = start + 1
		}
		start = next
	}

	return pieces
}

// findBreak は [start+半分, end) の範囲で自然な区切り位置を後方探索する
// 優先順位: 段落境界 > 改行 > 文末 > 空白。見つからなければ end で強制分割
func (c *Chunker) findBreak(runes []rune, start, end int) int {
	low := start + (end-start)/2

	for i := end - 1; i > low; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i > low; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := end - 2; i > low; i-- {
		if runes[i] == '.' && unicode.IsSpace(runes[i+1]) {
			return i + 2
		}
	}
	for i := end - 1; i > low; i-- {
		if runes[i] == ' ' {
			return i + 1
		}
	}
	return end
}

// trimBounds は断片内の前後空白を除いた相対区間を返す
func trimBounds(seg []rune) (int, int) {
	s, e := 0, len(seg)
	for s < e && unicode.IsSpace(seg[s]) {
		s++
	}
	for e > s && unicode.IsSpace(seg[e-1]) {
		e--
	}
	return s, e
}
