package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"
)

// MemoryListAction は名前空間内のキー一覧を表示する
func MemoryListAction(ctx context.Context, cmd *cli.Command) error {
	ownerID, err := requireUUIDFlag(cmd, "owner")
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	namespace := cmd.String("namespace")
	keys, err := appCtx.Container.MemoryService.List(ctx, ownerID, namespace)
	if err != nil {
		return fmt.Errorf("キー一覧の取得に失敗: %w", err)
	}

	if len(keys) == 0 {
		fmt.Println("保存された記憶はありません")
		return nil
	}
	for _, key := range keys {
		fmt.Println(key)
	}
	return nil
}

// MemoryGetAction は記憶を1件表示する
func MemoryGetAction(ctx context.Context, cmd *cli.Command) error {
	ownerID, err := requireUUIDFlag(cmd, "owner")
	if err != nil {
		return err
	}
	key := cmd.String("key")

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	item, err := appCtx.Container.MemoryService.Get(ctx, ownerID, key, cmd.String("namespace"))
	if err != nil {
		return fmt.Errorf("記憶の取得に失敗: %w", err)
	}

	fmt.Printf("%s/%s = %s\n", item.Namespace, item.Key, string(item.Value))
	return nil
}

// MemorySetAction は記憶を1件保存する。値はJSONとして解釈する
func MemorySetAction(ctx context.Context, cmd *cli.Command) error {
	ownerID, err := requireUUIDFlag(cmd, "owner")
	if err != nil {
		return err
	}
	key := cmd.String("key")
	rawValue := cmd.String("value")

	if !json.Valid([]byte(rawValue)) {
		// 素の文字列はJSON文字列に包む
		encoded, err := json.Marshal(rawValue)
		if err != nil {
			return fmt.Errorf("値の変換に失敗: %w", err)
		}
		rawValue = string(encoded)
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	item, err := appCtx.Container.MemoryService.Set(ctx, ownerID, key, json.RawMessage(rawValue), cmd.String("namespace"))
	if err != nil {
		return fmt.Errorf("記憶の保存に失敗: %w", err)
	}

	fmt.Printf("保存しました: %s/%s\n", item.Namespace, item.Key)
	return nil
}

// MemoryNamespacesAction は使用中の名前空間一覧を表示する
func MemoryNamespacesAction(ctx context.Context, cmd *cli.Command) error {
	ownerID, err := requireUUIDFlag(cmd, "owner")
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	namespaces, err := appCtx.Container.MemoryService.Namespaces(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("名前空間一覧の取得に失敗: %w", err)
	}

	if len(namespaces) == 0 {
		fmt.Println("名前空間はありません")
		return nil
	}
	for _, ns := range namespaces {
		fmt.Println(ns)
	}
	return nil
}
