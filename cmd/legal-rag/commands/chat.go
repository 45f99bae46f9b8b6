package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/legal-rag/internal/core/agent"
)

// ChatAction は対話型のエージェントセッションを開始する
// 1行入力するごとにエージェントループを1回実行し、イベントを逐次表示する
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	ownerID, err := requireUUIDFlag(cmd, "owner")
	if err != nil {
		return err
	}
	matterID, err := optionalUUIDFlag(cmd, "matter")
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	conversationID := uuid.New()
	if raw := cmd.String("conversation"); raw != "" {
		conversationID, err = uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("--conversation の値が不正です: %w", err)
		}
	}

	runner, err := appCtx.Container.NewRunner(agent.Scope{
		OwnerUserID:    ownerID,
		ConversationID: conversationID,
		MatterID:       matterID,
	})
	if err != nil {
		return err
	}

	fmt.Printf("会話を開始します (conversation: %s)。exit で終了\n", conversationID)

	history := make([]agent.Message, 0)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		history = runTurn(ctx, runner, history, line)
		if ctx.Err() != nil {
			break
		}
	}

	return scanner.Err()
}

// runTurn は1回のエージェント実行を行い、更新後の履歴を返す
func runTurn(ctx context.Context, runner *agent.Runner, history []agent.Message, userMessage string) []agent.Message {
	var assistantText strings.Builder

	for event := range runner.Run(ctx, history, userMessage) {
		switch event.Type {
		case agent.EventMessageDelta:
			fmt.Print(event.Delta)
			assistantText.WriteString(event.Delta)
		case agent.EventToolCallStart:
			fmt.Printf("\n[tool] %s を実行中...\n", event.ToolName)
		case agent.EventToolCallEnd:
			fmt.Printf("[tool] %s 完了\n", event.ToolName)
		case agent.EventRunFinished:
			fmt.Println()
			history = append(history,
				agent.Message{Role: agent.RoleUser, Content: userMessage},
				agent.Message{Role: agent.RoleAssistant, Content: event.Content},
			)
		case agent.EventRunCancelled:
			fmt.Println("\n実行を中断しました")
		case agent.EventRunError:
			fmt.Printf("\nエラー: %s\n", event.Err)
		}
	}

	return history
}
