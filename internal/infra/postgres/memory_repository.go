package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/legal-rag/internal/core/memory"
)

// MemoryRepository は core/memory.Repository を実装する PostgreSQL リポジトリ。
type MemoryRepository struct {
	pool *pgxpool.Pool
}

// NewMemoryRepository は新しい MemoryRepository を返す。
func NewMemoryRepository(pool *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{pool: pool}
}

var _ memory.Repository = (*MemoryRepository)(nil)

const getMemoryQuery = `
SELECT owner_user_id, namespace, key, value, created_at, updated_at
FROM memory_items
WHERE owner_user_id = $1 AND namespace = $2 AND key = $3
`

func (r *MemoryRepository) Get(ctx context.Context, ownerUserID uuid.UUID, namespace, key string) (*memory.Item, error) {
	row := r.pool.QueryRow(ctx, getMemoryQuery, UUIDToPgtype(ownerUserID), namespace, key)

	item, err := scanMemoryItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, memory.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get memory item: %w", err)
	}
	return item, nil
}

const upsertMemoryQuery = `
INSERT INTO memory_items (owner_user_id, namespace, key, value)
VALUES ($1, $2, $3, $4)
ON CONFLICT (owner_user_id, namespace, key) DO UPDATE SET
	value      = EXCLUDED.value,
	updated_at = now()
RETURNING owner_user_id, namespace, key, value, created_at, updated_at
`

func (r *MemoryRepository) Upsert(ctx context.Context, item *memory.Item) (*memory.Item, error) {
	row := r.pool.QueryRow(ctx, upsertMemoryQuery,
		UUIDToPgtype(item.OwnerUserID),
		item.Namespace,
		item.Key,
		[]byte(item.Value),
	)

	saved, err := scanMemoryItem(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert memory item: %w", err)
	}
	return saved, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, ownerUserID uuid.UUID, namespace, key string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM memory_items WHERE owner_user_id = $1 AND namespace = $2 AND key = $3`,
		UUIDToPgtype(ownerUserID), namespace, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete memory item: %w", err)
	}
	return nil
}

func (r *MemoryRepository) ListKeys(ctx context.Context, ownerUserID uuid.UUID, namespace string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT key FROM memory_items WHERE owner_user_id = $1 AND namespace = $2 ORDER BY key ASC`,
		UUIDToPgtype(ownerUserID), namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory keys: %w", err)
	}
	defer rows.Close()

	return collectStrings(rows)
}

func (r *MemoryRepository) SearchKeys(ctx context.Context, ownerUserID uuid.UUID, namespace, prefix string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT key FROM memory_items
		 WHERE owner_user_id = $1 AND namespace = $2 AND key LIKE $3 || '%'
		 ORDER BY key ASC`,
		UUIDToPgtype(ownerUserID), namespace, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory keys: %w", err)
	}
	defer rows.Close()

	return collectStrings(rows)
}

func (r *MemoryRepository) Namespaces(ctx context.Context, ownerUserID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT namespace FROM memory_items WHERE owner_user_id = $1 ORDER BY namespace ASC`,
		UUIDToPgtype(ownerUserID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	defer rows.Close()

	return collectStrings(rows)
}

func (r *MemoryRepository) DeleteNamespace(ctx context.Context, ownerUserID uuid.UUID, namespace string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM memory_items WHERE owner_user_id = $1 AND namespace = $2`,
		UUIDToPgtype(ownerUserID), namespace,
	)
	if err != nil {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}
	return nil
}

func collectStrings(rows pgx.Rows) ([]string, error) {
	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read values: %w", err)
	}
	return values, nil
}

// scanMemoryItem は1行を memory.Item に変換する。
func scanMemoryItem(row pgx.Row) (*memory.Item, error) {
	var (
		ownerUserID pgtype.UUID
		namespace   string
		key         string
		value       []byte
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)
	if err := row.Scan(&ownerUserID, &namespace, &key, &value, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &memory.Item{
		OwnerUserID: PgtypeToUUID(ownerUserID),
		Namespace:   namespace,
		Key:         key,
		Value:       json.RawMessage(value),
		CreatedAt:   PgtypeToTime(createdAt),
		UpdatedAt:   PgtypeToTime(updatedAt),
	}, nil
}
