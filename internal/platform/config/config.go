package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// Isaacus設定（Embedding / Rerank / 抽出 / 分類用）
	Isaacus IsaacusConfig

	// OpenAI設定（エージェント対話用）
	OpenAI OpenAIConfig

	// チャンク化設定
	Chunking ChunkingConfig

	// エージェント設定
	Agent AgentConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MaxConns は接続プールの最大接続数。0の場合はドライバのデフォルト
	MaxConns int
}

// IsaacusConfig はIsaacus API設定
// モデルIDと次元が空（または0）の場合、各アダプタのデフォルトを使う
type IsaacusConfig struct {
	APIKey             string
	BaseURL            string
	RequestsPerSecond  int
	EmbeddingModel     string
	EmbeddingDimension int
	RerankModel        string
	ExtractionModel    string
	ClassifierModel    string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey    string
	ChatModel string
}

// ChunkingConfig はドキュメントのチャンク化設定
type ChunkingConfig struct {
	MaxChunkChars int
	OverlapChars  int
}

// AgentConfig はエージェントループの設定
type AgentConfig struct {
	MaxSteps           int
	ToolTimeoutSeconds int
	ConcurrentTools    bool
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "legalrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "legalrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 0),
		},
		Isaacus: IsaacusConfig{
			APIKey:             getEnv("ISAACUS_API_KEY", ""),
			BaseURL:            getEnv("ISAACUS_BASE_URL", ""),
			RequestsPerSecond:  getEnvAsInt("ISAACUS_REQUESTS_PER_SECOND", 5),
			EmbeddingModel:     getEnv("ISAACUS_EMBEDDING_MODEL", ""),
			EmbeddingDimension: getEnvAsInt("ISAACUS_EMBEDDING_DIMENSION", 0),
			RerankModel:        getEnv("ISAACUS_RERANK_MODEL", ""),
			ExtractionModel:    getEnv("ISAACUS_EXTRACTION_MODEL", ""),
			ClassifierModel:    getEnv("ISAACUS_CLASSIFIER_MODEL", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			ChatModel: getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		},
		Chunking: ChunkingConfig{
			MaxChunkChars: getEnvAsInt("CHUNK_MAX_CHARS", 1500),
			OverlapChars:  getEnvAsInt("CHUNK_OVERLAP_CHARS", 200),
		},
		Agent: AgentConfig{
			MaxSteps:           getEnvAsInt("AGENT_MAX_STEPS", 10),
			ToolTimeoutSeconds: getEnvAsInt("AGENT_TOOL_TIMEOUT_SECONDS", 30),
			ConcurrentTools:    getEnvAsBool("AGENT_CONCURRENT_TOOLS", false),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
