package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/legal-rag/internal/core/plan"
)

// TodoListAction は会話のタスク一覧を表示する
func TodoListAction(ctx context.Context, cmd *cli.Command) error {
	conversationID, err := requireUUIDFlag(cmd, "conversation")
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	var todos []*plan.TodoItem
	if cmd.Bool("pending") {
		todos, err = appCtx.Container.TodoService.GetPending(ctx, conversationID)
	} else {
		todos, err = appCtx.Container.TodoService.GetAll(ctx, conversationID)
	}
	if err != nil {
		return fmt.Errorf("タスク一覧の取得に失敗: %w", err)
	}

	if len(todos) == 0 {
		fmt.Println("タスクはありません")
		return nil
	}

	renderTodosTable(todos)
	return nil
}

// TodoClearAction は会話のタスクを一括削除する
func TodoClearAction(ctx context.Context, cmd *cli.Command) error {
	conversationID, err := requireUUIDFlag(cmd, "conversation")
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.TodoService.Clear(ctx, conversationID); err != nil {
		return fmt.Errorf("タスクの削除に失敗: %w", err)
	}

	fmt.Println("タスクを削除しました")
	return nil
}

// renderTodosTable はタスク一覧をテーブル表示します
func renderTodosTable(todos []*plan.TodoItem) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("#", "ID", "Status", "Content", "Result")

	for _, todo := range todos {
		result := ""
		if todo.Result != nil {
			result = truncateString(*todo.Result, 30)
		}
		table.Append(
			fmt.Sprintf("%d", todo.OrderIndex),
			todo.ID.String(),
			string(todo.Status),
			truncateString(todo.Content, 50),
			result,
		)
	}

	table.Render()
}
