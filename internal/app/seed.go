package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hitoshi/railwatch/internal/config"
	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/repository"
	"github.com/hitoshi/railwatch/internal/station"
)

// assetReplacer は駅アセットの置き換えインターフェース。
type assetReplacer interface {
	ReplaceForCRS(ctx context.Context, crs string, assets []model.Asset) error
}

// runSeed はアセット定義ファイルを読み込み、station_assetsへ投入する。
// argsの先頭にファイルパスを指定する。
func runSeed(ctx context.Context, cfg *config.Config, l *slog.Logger, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: railwatch seed <assets.yaml>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read asset file: %w", err)
	}

	db, err := openDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := seedAssets(ctx, repository.NewPostgresAssetRepo(db), data, l)
	if err != nil {
		return err
	}
	l.Info("station assets seeded",
		slog.String("file", args[0]),
		slog.Int("asset_count", n),
	)
	return nil
}

// seedAssets はアセット定義を解析し、駅ごとに置き換える。
// 定義全体を検証してから書き込むため、不正なファイルでは何も変更しない。
func seedAssets(ctx context.Context, repo assetReplacer, data []byte, l *slog.Logger) (int, error) {
	sets, err := station.ParseAssets(data)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, set := range sets {
		if err := repo.ReplaceForCRS(ctx, set.CRS, set.Assets); err != nil {
			return total, fmt.Errorf("failed to seed assets for %s: %w", set.CRS, err)
		}
		total += len(set.Assets)
		l.Info("station assets replaced",
			slog.String("crs", set.CRS),
			slog.Int("asset_count", len(set.Assets)),
		)
	}
	return total, nil
}
