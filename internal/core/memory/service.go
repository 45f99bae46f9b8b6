package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service は長期記憶のビジネスロジックを提供する
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithMemoryLogger は Service にロガーを設定する
func WithMemoryLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しいServiceを作成する
func NewService(repo Repository, opts ...ServiceOption) *Service {
	svc := &Service{
		repo:   repo,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

func normalizeNamespace(namespace string) string {
	if namespace == "" {
		return DefaultNamespace
	}
	return namespace
}

// Get は記憶を1件取得する
// 見つからない場合は ErrNotFound を返す
func (s *Service) Get(ctx context.Context, ownerUserID uuid.UUID, key, namespace string) (*Item, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("ownerUserID is required")
	}
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	return s.repo.Get(ctx, ownerUserID, normalizeNamespace(namespace), key)
}

// Set は記憶を保存する。(owner, namespace, key) が既存なら値を置き換える
func (s *Service) Set(ctx context.Context, ownerUserID uuid.UUID, key string, value json.RawMessage, namespace string) (*Item, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("ownerUserID is required")
	}
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("value is required")
	}

	now := time.Now()
	item, err := s.repo.Upsert(ctx, &Item{
		OwnerUserID: ownerUserID,
		Namespace:   normalizeNamespace(namespace),
		Key:         key,
		Value:       value,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}

	s.logger.Info("memory stored",
		"ownerUserID", ownerUserID.String(),
		"namespace", item.Namespace,
		"key", key,
	)

	return item, nil
}

// Delete は記憶を1件削除する
func (s *Service) Delete(ctx context.Context, ownerUserID uuid.UUID, key, namespace string) error {
	if ownerUserID == uuid.Nil {
		return fmt.Errorf("ownerUserID is required")
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return s.repo.Delete(ctx, ownerUserID, normalizeNamespace(namespace), key)
}

// List は名前空間内のキー一覧を返す。未書き込みでも空を返す
func (s *Service) List(ctx context.Context, ownerUserID uuid.UUID, namespace string) ([]string, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("ownerUserID is required")
	}
	keys, err := s.repo.ListKeys(ctx, ownerUserID, normalizeNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to list memory keys: %w", err)
	}
	return keys, nil
}

// Search はキーの前方一致検索を行う
func (s *Service) Search(ctx context.Context, ownerUserID uuid.UUID, prefix, namespace string) ([]string, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("ownerUserID is required")
	}
	keys, err := s.repo.SearchKeys(ctx, ownerUserID, normalizeNamespace(namespace), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to search memory keys: %w", err)
	}
	return keys, nil
}

// Namespaces は所有者が使用中の名前空間一覧を返す
func (s *Service) Namespaces(ctx context.Context, ownerUserID uuid.UUID) ([]string, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("ownerUserID is required")
	}
	namespaces, err := s.repo.Namespaces(ctx, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	return namespaces, nil
}

// ClearNamespace は名前空間内の記憶を一括削除する
func (s *Service) ClearNamespace(ctx context.Context, ownerUserID uuid.UUID, namespace string) error {
	if ownerUserID == uuid.Nil {
		return fmt.Errorf("ownerUserID is required")
	}
	if err := s.repo.DeleteNamespace(ctx, ownerUserID, normalizeNamespace(namespace)); err != nil {
		return fmt.Errorf("failed to clear namespace: %w", err)
	}
	return nil
}
