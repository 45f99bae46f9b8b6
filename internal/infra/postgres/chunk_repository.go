package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/legal-rag/internal/core/ingestion"
	"github.com/jinford/legal-rag/internal/core/search"
)

// ChunkRepository はチャンクの永続化と類似検索を担う PostgreSQL リポジトリ。
// ingestion.Repository と search.Repository の両方を実装する。
type ChunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository は新しい ChunkRepository を返す。
func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

var (
	_ ingestion.Repository = (*ChunkRepository)(nil)
	_ search.Repository    = (*ChunkRepository)(nil)
)

const upsertChunkQuery = `
INSERT INTO chunks (
	id, document_id, owner_user_id, matter_id, chunk_index,
	content, start_offset, end_offset, tokens, metadata, embedding
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (document_id, chunk_index) DO UPDATE SET
	owner_user_id = EXCLUDED.owner_user_id,
	matter_id     = EXCLUDED.matter_id,
	content       = EXCLUDED.content,
	start_offset  = EXCLUDED.start_offset,
	end_offset    = EXCLUDED.end_offset,
	tokens        = EXCLUDED.tokens,
	metadata      = EXCLUDED.metadata,
	embedding     = EXCLUDED.embedding
`

func (r *ChunkRepository) UpsertChunks(ctx context.Context, chunks []*ingestion.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(upsertChunkQuery,
			UUIDToPgtype(c.ID),
			UUIDToPgtype(c.DocumentID),
			UUIDToPgtype(c.OwnerUserID),
			UUIDPtrToPgtype(c.MatterID),
			int32(c.ChunkIndex),
			c.Content,
			int32(c.StartOffset),
			int32(c.EndOffset),
			int32(c.Tokens),
			JSONBFromStringMap(c.Metadata),
			pgvector.NewVector(c.Embedding),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert chunks: %w", err)
		}
	}
	return nil
}

func (r *ChunkRepository) DeleteChunksFrom(ctx context.Context, documentID uuid.UUID, fromIndex int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1 AND chunk_index >= $2`,
		UUIDToPgtype(documentID), int32(fromIndex),
	)
	if err != nil {
		return fmt.Errorf("failed to delete chunks from index: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1`,
		UUIDToPgtype(documentID),
	)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by document: %w", err)
	}
	return nil
}

const searchChunksQuery = `
SELECT
	id,
	document_id,
	chunk_index,
	content,
	metadata,
	1 - (embedding <=> $1) AS score
FROM chunks
WHERE owner_user_id = $2
  AND ($3::uuid IS NULL OR matter_id = $3)
  AND embedding IS NOT NULL
  AND 1 - (embedding <=> $1) >= $4
ORDER BY score DESC, chunk_index ASC
LIMIT $5
`

func (r *ChunkRepository) SearchChunks(ctx context.Context, queryVector []float32, filter search.Filter) ([]*search.SearchResult, error) {
	rows, err := r.pool.Query(ctx, searchChunksQuery,
		pgvector.NewVector(queryVector),
		UUIDToPgtype(filter.OwnerUserID),
		UUIDPtrToPgtype(filter.MatterID),
		filter.Threshold,
		int32(filter.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	results := make([]*search.SearchResult, 0)
	for rows.Next() {
		var (
			id         pgtype.UUID
			documentID pgtype.UUID
			chunkIndex int32
			content    string
			metadata   []byte
			score      float64
		)
		if err := rows.Scan(&id, &documentID, &chunkIndex, &content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, &search.SearchResult{
			ChunkID:    PgtypeToUUID(id),
			DocumentID: PgtypeToUUID(documentID),
			ChunkIndex: int(chunkIndex),
			Content:    content,
			Score:      score,
			Metadata:   StringMapFromJSONB(metadata),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return results, nil
}
