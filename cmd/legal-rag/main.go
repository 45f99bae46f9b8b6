package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/legal-rag/cmd/legal-rag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "legal-rag",
		Usage: "法務ドキュメント向け検索・エージェント基盤",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "環境変数ファイルパス",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "ログレベル (debug/info/warn/error)",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "document",
				Usage: "ドキュメント管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "ingest",
						Usage: "ファイルをインデックス化",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ユーザーID (UUID)",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "matter",
								Usage: "案件ID (UUID)",
							},
							&cli.StringFlag{
								Name:     "file",
								Usage:    "テキストファイルパス",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "name",
								Usage: "ドキュメント名（省略時はファイルパス）",
							},
						},
						Action: commands.DocumentIngestAction,
					},
					{
						Name:  "list",
						Usage: "ドキュメント一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ユーザーID (UUID)",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "matter",
								Usage: "案件ID (UUID)",
							},
						},
						Action: commands.DocumentListAction,
					},
					{
						Name:  "show",
						Usage: "ドキュメント詳細を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ユーザーID (UUID)",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ドキュメントID (UUID)",
								Required: true,
							},
						},
						Action: commands.DocumentShowAction,
					},
					{
						Name:  "delete",
						Usage: "ドキュメントとチャンクを削除",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ユーザーID (UUID)",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ドキュメントID (UUID)",
								Required: true,
							},
						},
						Action: commands.DocumentDeleteAction,
					},
				},
			},
			{
				Name:  "search",
				Usage: "ベクトル類似検索を実行",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "所有者ユーザーID (UUID)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "matter",
						Usage: "案件ID (UUID)",
					},
					&cli.StringFlag{
						Name:     "query",
						Usage:    "検索クエリ",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "取得件数",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "類似度の足切り (0〜1)",
					},
					&cli.BoolFlag{
						Name:  "rerank",
						Usage: "検索結果をリランキングする",
					},
				},
				Action: commands.SearchAction,
			},
			{
				Name:  "chat",
				Usage: "対話型エージェントセッションを開始",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "所有者ユーザーID (UUID)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "matter",
						Usage: "案件ID (UUID)",
					},
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "会話ID (UUID、省略時は新規生成)",
					},
				},
				Action: commands.ChatAction,
			},
			{
				Name:  "todo",
				Usage: "タスク計画コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "会話のタスク一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "conversation",
								Usage:    "会話ID (UUID)",
								Required: true,
							},
							&cli.BoolFlag{
								Name:  "pending",
								Usage: "未完了タスクのみ表示",
							},
						},
						Action: commands.TodoListAction,
					},
					{
						Name:  "clear",
						Usage: "会話のタスクを一括削除",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "conversation",
								Usage:    "会話ID (UUID)",
								Required: true,
							},
						},
						Action: commands.TodoClearAction,
					},
				},
			},
			{
				Name:  "memory",
				Usage: "長期記憶コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "名前空間内のキー一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ユーザーID (UUID)",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "namespace",
								Usage: "名前空間",
							},
						},
						Action: commands.MemoryListAction,
					},
					{
						Name:  "get",
						Usage: "記憶を1件表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ユーザーID (UUID)",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "key",
								Usage:    "キー",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "namespace",
								Usage: "名前空間",
							},
						},
						Action: commands.MemoryGetAction,
					},
					{
						Name:  "set",
						Usage: "記憶を1件保存",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ユーザーID (UUID)",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "key",
								Usage:    "キー",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "value",
								Usage:    "値 (JSON)",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "namespace",
								Usage: "名前空間",
							},
						},
						Action: commands.MemorySetAction,
					},
					{
						Name:  "namespaces",
						Usage: "使用中の名前空間一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ユーザーID (UUID)",
								Required: true,
							},
						},
						Action: commands.MemoryNamespacesAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
