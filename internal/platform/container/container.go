package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinford/legal-rag/internal/core/agent"
	"github.com/jinford/legal-rag/internal/core/document"
	"github.com/jinford/legal-rag/internal/core/ingestion"
	"github.com/jinford/legal-rag/internal/core/memory"
	"github.com/jinford/legal-rag/internal/core/plan"
	"github.com/jinford/legal-rag/internal/core/refine"
	"github.com/jinford/legal-rag/internal/core/search"
	"github.com/jinford/legal-rag/internal/infra/isaacus"
	"github.com/jinford/legal-rag/internal/infra/openai"
	"github.com/jinford/legal-rag/internal/infra/postgres"
	"github.com/jinford/legal-rag/internal/platform/config"
	"github.com/jinford/legal-rag/pkg/db"
)

// ServiceContainer はアプリケーションの依存関係を保持する。
type ServiceContainer struct {
	IndexService  *ingestion.IndexService
	SearchService *search.SearchService
	RefineService *refine.Service
	TodoService   *plan.TodoService
	MemoryService *memory.Service
	Documents     document.Repository
	ChatModel     agent.ChatModel

	config   *config.Config
	logger   *slog.Logger
	database *db.DB
}

type containerOptions struct {
	logger        *slog.Logger
	embedder      ingestion.Embedder
	queryEmbedder search.QueryEmbedder
	reranker      refine.Reranker
	extractor     refine.Extractor
	classifier    refine.Classifier
	chatModel     agent.ChatModel
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はドキュメント用 Embedder を注入する
func WithContainerEmbedder(embedder ingestion.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerQueryEmbedder はクエリ用 Embedder を注入する
func WithContainerQueryEmbedder(embedder search.QueryEmbedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.queryEmbedder = embedder
	}
}

// WithContainerReranker は Reranker を差し替える
func WithContainerReranker(reranker refine.Reranker) ContainerOption {
	return func(opts *containerOptions) {
		opts.reranker = reranker
	}
}

// WithContainerExtractor は Extractor を差し替える
func WithContainerExtractor(extractor refine.Extractor) ContainerOption {
	return func(opts *containerOptions) {
		opts.extractor = extractor
	}
}

// WithContainerClassifier は Classifier を差し替える
func WithContainerClassifier(classifier refine.Classifier) ContainerOption {
	return func(opts *containerOptions) {
		opts.classifier = classifier
	}
}

// WithContainerChatModel は対話モデルを差し替える
func WithContainerChatModel(model agent.ChatModel) ContainerOption {
	return func(opts *containerOptions) {
		opts.chatModel = model
	}
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: int32(cfg.Database.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	return NewContainerWithDB(cfg, database, opts...)
}

// NewContainerWithDB は既存の DB を受け取りコンテナを生成する。
func NewContainerWithDB(cfg *config.Config, database *db.DB, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// Isaacusクライアント（Embedding / Rerank / 抽出 / 分類）
	var isaacusClient *isaacus.Client
	needsIsaacus := options.embedder == nil || options.queryEmbedder == nil ||
		options.reranker == nil || options.extractor == nil || options.classifier == nil
	if needsIsaacus {
		clientOpts := []isaacus.ClientOption{
			isaacus.WithClientLogger(options.logger),
		}
		if cfg.Isaacus.BaseURL != "" {
			clientOpts = append(clientOpts, isaacus.WithBaseURL(cfg.Isaacus.BaseURL))
		}
		if cfg.Isaacus.RequestsPerSecond > 0 {
			clientOpts = append(clientOpts, isaacus.WithRequestsPerSecond(float64(cfg.Isaacus.RequestsPerSecond)))
		}

		client, err := isaacus.NewClient(cfg.Isaacus.APIKey, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("Isaacusクライアント初期化に失敗しました: %w", err)
		}
		isaacusClient = client
	}

	var embedderOpts []isaacus.EmbedderOption
	if cfg.Isaacus.EmbeddingModel != "" {
		embedderOpts = append(embedderOpts, isaacus.WithEmbeddingModel(cfg.Isaacus.EmbeddingModel))
	}
	if cfg.Isaacus.EmbeddingDimension > 0 {
		embedderOpts = append(embedderOpts, isaacus.WithEmbeddingDimension(cfg.Isaacus.EmbeddingDimension))
	}

	embedder := options.embedder
	if embedder == nil {
		embedder = isaacus.NewEmbedder(isaacusClient, embedderOpts...)
	}
	queryEmbedder := options.queryEmbedder
	if queryEmbedder == nil {
		queryEmbedder = isaacus.NewEmbedder(isaacusClient, embedderOpts...)
	}
	reranker := options.reranker
	if reranker == nil {
		var rerankOpts []isaacus.RerankerOption
		if cfg.Isaacus.RerankModel != "" {
			rerankOpts = append(rerankOpts, isaacus.WithRerankModel(cfg.Isaacus.RerankModel))
		}
		reranker = isaacus.NewReranker(isaacusClient, rerankOpts...)
	}
	extractor := options.extractor
	if extractor == nil {
		var extractOpts []isaacus.ExtractorOption
		if cfg.Isaacus.ExtractionModel != "" {
			extractOpts = append(extractOpts, isaacus.WithExtractionModel(cfg.Isaacus.ExtractionModel))
		}
		extractor = isaacus.NewExtractor(isaacusClient, extractOpts...)
	}
	classifier := options.classifier
	if classifier == nil {
		var classifierOpts []isaacus.ClassifierOption
		if cfg.Isaacus.ClassifierModel != "" {
			classifierOpts = append(classifierOpts, isaacus.WithClassifierModel(cfg.Isaacus.ClassifierModel))
		}
		classifier = isaacus.NewClassifier(isaacusClient, classifierOpts...)
	}

	// 対話モデル (OpenAI)
	chatModel := options.chatModel
	if chatModel == nil {
		client, err := openai.NewChatClient(
			cfg.OpenAI.APIKey,
			openai.WithChatModel(cfg.OpenAI.ChatModel),
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAIクライアント初期化に失敗しました: %w", err)
		}
		chatModel = client
	}

	// Repository (PostgreSQL)
	chunkRepo := postgres.NewChunkRepository(database.Pool)
	documentRepo := postgres.NewDocumentRepository(database.Pool)
	todoRepo := postgres.NewTodoRepository(database.Pool)
	memoryRepo := postgres.NewMemoryRepository(database.Pool)

	// IndexService
	indexService, err := ingestion.NewIndexService(
		chunkRepo,
		documentRepo,
		embedder,
		ingestion.WithIndexLogger(options.logger),
		ingestion.WithIndexChunkerConfig(&ingestion.ChunkerConfig{
			MaxChunkChars: cfg.Chunking.MaxChunkChars,
			OverlapChars:  cfg.Chunking.OverlapChars,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("IndexService 初期化に失敗しました: %w", err)
	}

	// SearchService
	searchService := search.NewSearchService(chunkRepo, queryEmbedder, search.WithSearchLogger(options.logger))

	// RefineService
	refineService := refine.NewService(reranker, extractor, classifier, refine.WithRefineLogger(options.logger))

	// TodoService / MemoryService
	todoService := plan.NewTodoService(todoRepo, plan.WithTodoLogger(options.logger))
	memoryService := memory.NewService(memoryRepo, memory.WithMemoryLogger(options.logger))

	return &ServiceContainer{
		IndexService:  indexService,
		SearchService: searchService,
		RefineService: refineService,
		TodoService:   todoService,
		MemoryService: memoryService,
		Documents:     documentRepo,
		ChatModel:     chatModel,
		config:        cfg,
		logger:        options.logger,
		database:      database,
	}, nil
}

// NewRunner は会話スコープに閉じたエージェントRunnerを構築する。
func (c *ServiceContainer) NewRunner(scope agent.Scope) (*agent.Runner, error) {
	tools := agent.BuildTools(agent.ToolDeps{
		Search:    c.SearchService,
		Refine:    c.RefineService,
		Documents: c.Documents,
		Todos:     c.TodoService,
		Memory:    c.MemoryService,
	}, scope)

	registry, err := agent.NewRegistry(tools...)
	if err != nil {
		return nil, fmt.Errorf("ツールレジストリ構築に失敗しました: %w", err)
	}

	runnerOpts := []agent.RunnerOption{
		agent.WithRunnerLogger(c.logger),
	}
	if c.config.Agent.MaxSteps > 0 {
		runnerOpts = append(runnerOpts, agent.WithMaxSteps(c.config.Agent.MaxSteps))
	}
	if c.config.Agent.ToolTimeoutSeconds > 0 {
		runnerOpts = append(runnerOpts, agent.WithToolTimeout(time.Duration(c.config.Agent.ToolTimeoutSeconds)*time.Second))
	}
	if c.config.Agent.ConcurrentTools {
		runnerOpts = append(runnerOpts, agent.WithConcurrentTools(true))
	}

	return agent.NewRunner(c.ChatModel, registry, runnerOpts...), nil
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() {
	if c != nil && c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Database はデータベースを返す。
func (c *ServiceContainer) Database() *db.DB {
	if c == nil {
		return nil
	}
	return c.database
}
