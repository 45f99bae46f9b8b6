package document

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound はドキュメントが存在しない場合に返される
// 汎用的な失敗と区別し、呼び出し側が「見つからない」専用の応答を返せるようにする
var ErrNotFound = errors.New("document not found")

// Repository はドキュメントのデータアクセスインターフェース
type Repository interface {
	// GetByID は所有者スコープでドキュメントを取得する
	// 他の所有者のドキュメントは ErrNotFound として扱う
	GetByID(ctx context.Context, ownerUserID, documentID uuid.UUID) (*Document, error)

	// ListByOwner は所有者のドキュメント一覧を取得する
	// matterID を指定した場合は案件内に絞り込む
	ListByOwner(ctx context.Context, ownerUserID uuid.UUID, matterID *uuid.UUID) ([]*Document, error)

	// UpdateStatus は処理状態とチャンク数を書き戻す
	UpdateStatus(ctx context.Context, documentID uuid.UUID, status Status, chunkCount int) error
}
