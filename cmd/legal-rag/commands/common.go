package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/legal-rag/internal/platform/config"
	"github.com/jinford/legal-rag/internal/platform/container"
	"github.com/jinford/legal-rag/internal/platform/logger"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.ServiceContainer
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, cmd *cli.Command) (*AppContext, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	loggerCfg := logger.DefaultConfig()
	loggerCfg.Level = logger.ParseLevel(cmd.String("log-level"))
	appLogger := logger.New(loggerCfg)

	cont, err := container.NewContainer(ctx, cfg, container.WithContainerLogger(appLogger))
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Container: cont,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// requireUUIDFlag は必須のUUIDフラグを解析する
func requireUUIDFlag(cmd *cli.Command, name string) (uuid.UUID, error) {
	value := cmd.String(name)
	if value == "" {
		return uuid.Nil, fmt.Errorf("--%s は必須です", name)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s の値が不正です: %w", name, err)
	}
	return id, nil
}

// optionalUUIDFlag は任意のUUIDフラグを解析する。未指定なら nil を返す
func optionalUUIDFlag(cmd *cli.Command, name string) (*uuid.UUID, error) {
	value := cmd.String(name)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("--%s の値が不正です: %w", name, err)
	}
	return &id, nil
}

// truncateString は表示用に文字列を切り詰める
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
