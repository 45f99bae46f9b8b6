package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/legal-rag/internal/core/document"
)

// IndexService はドキュメントのインデックス化ユースケースを提供する
// テキスト抽出済みのドキュメントをチャンク化し、Embeddingを付与して永続化する
type IndexService struct {
	repository Repository
	documents  document.Repository
	embedder   Embedder
	chunker    *Chunker
	logger     *slog.Logger
}

type indexServiceOptions struct {
	chunkerConfig *ChunkerConfig
	logger        *slog.Logger
}

// IndexServiceOption は IndexService のオプション設定
type IndexServiceOption func(*indexServiceOptions)

// WithIndexLogger は IndexService にロガーを設定する
func WithIndexLogger(logger *slog.Logger) IndexServiceOption {
	return func(o *indexServiceOptions) {
		o.logger = logger
	}
}

// WithIndexChunkerConfig はチャンク設定を上書きする
func WithIndexChunkerConfig(cfg *ChunkerConfig) IndexServiceOption {
	return func(o *indexServiceOptions) {
		o.chunkerConfig = cfg
	}
}

// NewIndexService は新しいIndexServiceを作成する
func NewIndexService(
	repo Repository,
	documents document.Repository,
	embedder Embedder,
	opts ...IndexServiceOption,
) (*IndexService, error) {
	options := indexServiceOptions{
		chunkerConfig: DefaultChunkerConfig(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	chunker, err := NewChunker(options.chunkerConfig)
	if err != nil {
		return nil, err
	}

	return &IndexService{
		repository: repo,
		documents:  documents,
		embedder:   embedder,
		chunker:    chunker,
		logger:     options.logger,
	}, nil
}

// ProcessDocument はドキュメントのテキストをチャンク化・Embedding生成・保存する
// チャンクの保存が完了してからステータスを ready に書き戻す。
// Embedding生成が一部でも失敗した場合はチャンクを一切保存せず error 状態にする
func (s *IndexService) ProcessDocument(ctx context.Context, params IndexParams) (*IndexResult, error) {
	startTime := time.Now()

	if params.DocumentID == uuid.Nil {
		return nil, fmt.Errorf("documentID is required")
	}
	if params.OwnerUserID == uuid.Nil {
		return nil, fmt.Errorf("ownerUserID is required")
	}

	if err := s.documents.UpdateStatus(ctx, params.DocumentID, document.StatusProcessing, 0); err != nil {
		return nil, fmt.Errorf("failed to mark document as processing: %w", err)
	}

	pieces := s.chunker.Chunk(params.Text)
	s.logger.Info("document chunked",
		"documentID", params.DocumentID.String(),
		"chunks", len(pieces),
	)

	if len(pieces) == 0 {
		// 空ドキュメント: 既存チャンクを消して ready に戻す
		if err := s.repository.DeleteByDocument(ctx, params.DocumentID); err != nil {
			return nil, s.failDocument(ctx, params.DocumentID, fmt.Errorf("failed to delete chunks: %w", err))
		}
		if err := s.documents.UpdateStatus(ctx, params.DocumentID, document.StatusReady, 0); err != nil {
			return nil, fmt.Errorf("failed to mark document as ready: %w", err)
		}
		return &IndexResult{
			DocumentID: params.DocumentID,
			ChunkCount: 0,
			Duration:   time.Since(startTime),
		}, nil
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, s.failDocument(ctx, params.DocumentID, fmt.Errorf("failed to embed chunks: %w", err))
	}
	if len(vectors) != len(pieces) {
		return nil, s.failDocument(ctx, params.DocumentID,
			fmt.Errorf("embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(pieces)))
	}

	totalTokens := 0
	chunks := make([]*Chunk, len(pieces))
	now := time.Now()
	for i, p := range pieces {
		if dim := s.embedder.Dimension(); dim > 0 && len(vectors[i]) != dim {
			return nil, s.failDocument(ctx, params.DocumentID,
				fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(vectors[i]), dim))
		}
		totalTokens += p.Tokens
		chunks[i] = &Chunk{
			ID:          uuid.New(),
			DocumentID:  params.DocumentID,
			OwnerUserID: params.OwnerUserID,
			MatterID:    params.MatterID,
			ChunkIndex:  p.Index,
			Content:     p.Content,
			StartOffset: p.StartOffset,
			EndOffset:   p.EndOffset,
			Tokens:      p.Tokens,
			Metadata:    params.Metadata,
			Embedding:   vectors[i],
			CreatedAt:   now,
		}
	}

	if err := s.repository.UpsertChunks(ctx, chunks); err != nil {
		return nil, s.failDocument(ctx, params.DocumentID, fmt.Errorf("failed to upsert chunks: %w", err))
	}

	// 再インデックスでチャンク数が減った場合の残骸を掃除する
	if err := s.repository.DeleteChunksFrom(ctx, params.DocumentID, len(chunks)); err != nil {
		return nil, s.failDocument(ctx, params.DocumentID, fmt.Errorf("failed to delete stale chunks: %w", err))
	}

	if err := s.documents.UpdateStatus(ctx, params.DocumentID, document.StatusReady, len(chunks)); err != nil {
		return nil, fmt.Errorf("failed to mark document as ready: %w", err)
	}

	s.logger.Info("document indexed",
		"documentID", params.DocumentID.String(),
		"chunks", len(chunks),
		"tokens", totalTokens,
		"duration", time.Since(startTime).String(),
	)

	return &IndexResult{
		DocumentID:  params.DocumentID,
		ChunkCount:  len(chunks),
		TotalTokens: totalTokens,
		Duration:    time.Since(startTime),
	}, nil
}

// DeleteDocument はドキュメントの全チャンクを削除する
func (s *IndexService) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	if documentID == uuid.Nil {
		return fmt.Errorf("documentID is required")
	}
	if err := s.repository.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// failDocument はドキュメントを error 状態にしたうえで元のエラーを返す
func (s *IndexService) failDocument(ctx context.Context, documentID uuid.UUID, cause error) error {
	if err := s.documents.UpdateStatus(ctx, documentID, document.StatusError, 0); err != nil {
		s.logger.Error("failed to mark document as error",
			"documentID", documentID.String(),
			"error", err,
		)
	}
	return cause
}
