package ingestion

import (
	"context"

	"github.com/google/uuid"
)

// Repository はチャンクの永続化インターフェース
type Repository interface {
	// UpsertChunks はチャンクを一括保存する
	// (documentID, chunkIndex) をキーとした冪等な操作で、
	// 既存行がある場合はベクトル・内容・メタデータを置き換える
	UpsertChunks(ctx context.Context, chunks []*Chunk) error

	// DeleteChunksFrom は指定インデックス以降のチャンクを削除する
	// 再インデックス時にチャンク数が減った場合の残骸掃除用
	DeleteChunksFrom(ctx context.Context, documentID uuid.UUID, fromIndex int) error

	// DeleteByDocument はドキュメントの全チャンクを削除する
	// チャンクが存在しないドキュメントに対しても no-op として成功する
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
}

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// EmbedDocuments はドキュメント用モードで複数テキストのEmbeddingを生成する
	// 入力順と同じ順序で結果を返す
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension はベクトル次元数を返す
	Dimension() int
}
