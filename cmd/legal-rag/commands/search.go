package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/legal-rag/internal/core/search"
)

// SearchAction はベクトル類似検索を実行する
// --rerank 指定時は検索結果をリランキングしてから表示する
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	ownerID, err := requireUUIDFlag(cmd, "owner")
	if err != nil {
		return err
	}
	matterID, err := optionalUUIDFlag(cmd, "matter")
	if err != nil {
		return err
	}
	query := cmd.String("query")

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	results, err := appCtx.Container.SearchService.Search(ctx, search.SearchParams{
		OwnerUserID: ownerID,
		MatterID:    matterID,
		Query:       query,
		Limit:       cmd.Int("limit"),
		Threshold:   cmd.Float64("threshold"),
	})
	if err != nil {
		return fmt.Errorf("検索に失敗: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("該当するチャンクはありません")
		return nil
	}

	if cmd.Bool("rerank") {
		texts := make([]string, 0, len(results))
		for _, r := range results {
			texts = append(texts, r.Content)
		}
		reranked, err := appCtx.Container.RefineService.Rerank(ctx, query, texts, len(texts))
		if err != nil {
			return fmt.Errorf("リランキングに失敗: %w", err)
		}

		reordered := make([]*search.SearchResult, 0, len(reranked))
		for _, doc := range reranked {
			hit := results[doc.OriginalIndex]
			hit.Score = doc.RelevanceScore
			reordered = append(reordered, hit)
		}
		results = reordered
	}

	for i, r := range results {
		fmt.Printf("--- %d. score=%.4f document=%s chunk=%d ---\n", i+1, r.Score, r.DocumentID, r.ChunkIndex)
		fmt.Println(truncateString(r.Content, 500))
		fmt.Println()
	}
	return nil
}
