package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/legal-rag/internal/core/document"
)

// DocumentRepository は core/document.Repository を実装する PostgreSQL リポジトリ。
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository は新しい DocumentRepository を返す。
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

var _ document.Repository = (*DocumentRepository)(nil)

// Create はドキュメントを登録する。
// コアのインターフェースには含まれない管理操作
func (r *DocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (id, owner_user_id, matter_id, name, status, chunk_count)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		UUIDToPgtype(doc.ID),
		UUIDToPgtype(doc.OwnerUserID),
		UUIDPtrToPgtype(doc.MatterID),
		doc.Name,
		string(doc.Status),
		int32(doc.ChunkCount),
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// Delete はドキュメントを削除する。チャンクはON DELETE CASCADEで消える
func (r *DocumentRepository) Delete(ctx context.Context, ownerUserID, documentID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND owner_user_id = $2`,
		UUIDToPgtype(documentID), UUIDToPgtype(ownerUserID),
	)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}
	return nil
}

const getDocumentQuery = `
SELECT id, owner_user_id, matter_id, name, status, chunk_count, created_at, updated_at
FROM documents
WHERE id = $1 AND owner_user_id = $2
`

func (r *DocumentRepository) GetByID(ctx context.Context, ownerUserID, documentID uuid.UUID) (*document.Document, error) {
	row := r.pool.QueryRow(ctx, getDocumentQuery, UUIDToPgtype(documentID), UUIDToPgtype(ownerUserID))

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

const listDocumentsQuery = `
SELECT id, owner_user_id, matter_id, name, status, chunk_count, created_at, updated_at
FROM documents
WHERE owner_user_id = $1
  AND ($2::uuid IS NULL OR matter_id = $2)
ORDER BY created_at DESC
`

func (r *DocumentRepository) ListByOwner(ctx context.Context, ownerUserID uuid.UUID, matterID *uuid.UUID) ([]*document.Document, error) {
	rows, err := r.pool.Query(ctx, listDocumentsQuery, UUIDToPgtype(ownerUserID), UUIDPtrToPgtype(matterID))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*document.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, documentID uuid.UUID, status document.Status, chunkCount int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET status = $2, chunk_count = $3, updated_at = now() WHERE id = $1`,
		UUIDToPgtype(documentID), string(status), int32(chunkCount),
	)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return document.ErrNotFound
	}
	return nil
}

// scanDocument は1行を document.Document に変換する。
func scanDocument(row pgx.Row) (*document.Document, error) {
	var (
		id          pgtype.UUID
		ownerUserID pgtype.UUID
		matterID    pgtype.UUID
		name        string
		status      string
		chunkCount  int32
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	if err := row.Scan(&id, &ownerUserID, &matterID, &name, &status, &chunkCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &document.Document{
		ID:          PgtypeToUUID(id),
		OwnerUserID: PgtypeToUUID(ownerUserID),
		MatterID:    PgtypeToUUIDPtr(matterID),
		Name:        name,
		Status:      document.Status(status),
		ChunkCount:  int(chunkCount),
		CreatedAt:   PgtypeToTime(createdAt),
		UpdatedAt:   PgtypeToTime(updatedAt),
	}, nil
}
