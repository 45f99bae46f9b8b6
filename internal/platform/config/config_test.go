package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("未設定ならデフォルト値を使う", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, 0, cfg.Database.MaxConns)
		assert.Equal(t, 5, cfg.Isaacus.RequestsPerSecond)
		assert.Empty(t, cfg.Isaacus.EmbeddingModel)
		assert.Equal(t, 0, cfg.Isaacus.EmbeddingDimension)
		assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
		assert.Equal(t, 1500, cfg.Chunking.MaxChunkChars)
		assert.Equal(t, 10, cfg.Agent.MaxSteps)
		assert.False(t, cfg.Agent.ConcurrentTools)
	})

	t.Run("環境変数で上書きできる", func(t *testing.T) {
		t.Setenv("DB_MAX_CONNS", "20")
		t.Setenv("ISAACUS_EMBEDDING_MODEL", "kanon-2-embedder")
		t.Setenv("ISAACUS_EMBEDDING_DIMENSION", "1792")
		t.Setenv("ISAACUS_RERANK_MODEL", "kanon-2-reranker")
		t.Setenv("ISAACUS_EXTRACTION_MODEL", "kanon-answer-extractor")
		t.Setenv("ISAACUS_CLASSIFIER_MODEL", "kanon-universal-classifier")
		t.Setenv("AGENT_CONCURRENT_TOOLS", "true")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, 20, cfg.Database.MaxConns)
		assert.Equal(t, "kanon-2-embedder", cfg.Isaacus.EmbeddingModel)
		assert.Equal(t, 1792, cfg.Isaacus.EmbeddingDimension)
		assert.Equal(t, "kanon-2-reranker", cfg.Isaacus.RerankModel)
		assert.Equal(t, "kanon-answer-extractor", cfg.Isaacus.ExtractionModel)
		assert.Equal(t, "kanon-universal-classifier", cfg.Isaacus.ClassifierModel)
		assert.True(t, cfg.Agent.ConcurrentTools)
	})

	t.Run("数値として解釈できない値はデフォルトに戻す", func(t *testing.T) {
		t.Setenv("DB_PORT", "not-a-number")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 5432, cfg.Database.Port)
	})
}
