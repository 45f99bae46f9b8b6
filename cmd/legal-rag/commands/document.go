package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/legal-rag/internal/core/document"
	"github.com/jinford/legal-rag/internal/core/ingestion"
	"github.com/jinford/legal-rag/internal/infra/postgres"
)

// DocumentIngestAction はファイルを読み込み、ドキュメントとして登録・インデックス化する
func DocumentIngestAction(ctx context.Context, cmd *cli.Command) error {
	ownerID, err := requireUUIDFlag(cmd, "owner")
	if err != nil {
		return err
	}
	matterID, err := optionalUUIDFlag(cmd, "matter")
	if err != nil {
		return err
	}
	filePath := cmd.String("file")

	text, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	name := cmd.String("name")
	if name == "" {
		name = filePath
	}

	doc := &document.Document{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		MatterID:    matterID,
		Name:        name,
		Status:      document.StatusPending,
	}

	docRepo := postgres.NewDocumentRepository(appCtx.Container.Database().Pool)
	if err := docRepo.Create(ctx, doc); err != nil {
		return fmt.Errorf("ドキュメントの登録に失敗: %w", err)
	}

	result, err := appCtx.Container.IndexService.ProcessDocument(ctx, ingestion.IndexParams{
		DocumentID:  doc.ID,
		OwnerUserID: ownerID,
		MatterID:    matterID,
		Text:        string(text),
		Metadata:    map[string]string{"documentName": name},
	})
	if err != nil {
		return fmt.Errorf("インデックス化に失敗: %w", err)
	}

	fmt.Printf("ドキュメントをインデックス化しました: %s (チャンク数: %d)\n", doc.ID, result.ChunkCount)
	return nil
}

// DocumentListAction はドキュメント一覧を表示する
func DocumentListAction(ctx context.Context, cmd *cli.Command) error {
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

	docs, err := appCtx.Container.Documents.ListByOwner(ctx, ownerID, matterID)
	if err != nil {
		return fmt.Errorf("ドキュメント一覧の取得に失敗: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("ドキュメントはありません")
		return nil
	}

	renderDocumentsTable(docs)
	return nil
}

// DocumentShowAction はドキュメントの詳細を表示する
func DocumentShowAction(ctx context.Context, cmd *cli.Command) error {
	ownerID, err := requireUUIDFlag(cmd, "owner")
	if err != nil {
		return err
	}
	docID, err := requireUUIDFlag(cmd, "id")
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	doc, err := appCtx.Container.Documents.GetByID(ctx, ownerID, docID)
	if err != nil {
		return fmt.Errorf("ドキュメントの取得に失敗: %w", err)
	}

	fmt.Printf("ID:         %s\n", doc.ID)
	fmt.Printf("名前:       %s\n", doc.Name)
	fmt.Printf("ステータス: %s\n", doc.Status)
	fmt.Printf("チャンク数: %d\n", doc.ChunkCount)
	if doc.MatterID != nil {
		fmt.Printf("案件:       %s\n", doc.MatterID)
	}
	fmt.Printf("作成日時:   %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("更新日時:   %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

// DocumentDeleteAction はドキュメントとそのチャンクを削除する
func DocumentDeleteAction(ctx context.Context, cmd *cli.Command) error {
	ownerID, err := requireUUIDFlag(cmd, "owner")
	if err != nil {
		return err
	}
	docID, err := requireUUIDFlag(cmd, "id")
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	docRepo := postgres.NewDocumentRepository(appCtx.Container.Database().Pool)
	if err := docRepo.Delete(ctx, ownerID, docID); err != nil {
		return fmt.Errorf("ドキュメントの削除に失敗: %w", err)
	}

	fmt.Printf("ドキュメントを削除しました: %s\n", docID)
	return nil
}

// renderDocumentsTable はドキュメント一覧をテーブル表示します
func renderDocumentsTable(docs []*document.Document) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Status", "Chunks", "Created At")

	for _, doc := range docs {
		table.Append(
			doc.ID.String(),
			truncateString(doc.Name, 40),
			string(doc.Status),
			fmt.Sprintf("%d", doc.ChunkCount),
			doc.CreatedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}
