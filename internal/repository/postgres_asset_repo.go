package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/railwatch/internal/model"
)

// PostgresAssetRepo はPostgreSQLを使用した駅アセットリポジトリ。
type PostgresAssetRepo struct {
	db *sql.DB
}

// NewPostgresAssetRepo はPostgresAssetRepoを生成する。
func NewPostgresAssetRepo(db *sql.DB) *PostgresAssetRepo {
	return &PostgresAssetRepo{db: db}
}

// ListByCRS は指定駅コードのアセットを駅コードごとにposition順で返す。
// アセットを持たない駅はマップに含まれない。
func (r *PostgresAssetRepo) ListByCRS(ctx context.Context, crsCodes []string) (map[string][]model.Asset, error) {
	result := make(map[string][]model.Asset)
	if len(crsCodes) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT crs, kind, title, url FROM station_assets
		 WHERE crs = ANY($1)
		 ORDER BY crs, position, created_at`,
		pq.Array(crsCodes),
	)
	if err != nil {
		return nil, &model.StoreError{Op: "station_assets.list", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Asset
		if err := rows.Scan(&a.CRS, &a.Kind, &a.Title, &a.URL); err != nil {
			return nil, &model.StoreError{Op: "station_assets.list", Err: fmt.Errorf("アセット行の読み取りに失敗しました: %w", err)}
		}
		result[a.CRS] = append(result[a.CRS], a)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "station_assets.list", Err: err}
	}
	return result, nil
}

// compile-time interface check
var _ AssetRepository = (*PostgresAssetRepo)(nil)

// ReplaceForCRS は駅のアセットを1トランザクションで置き換える。
// assetsの並び順をpositionとして保存し、IDはUUIDで採番する。空の場合は駅のアセットを消去する。
func (r *PostgresAssetRepo) ReplaceForCRS(ctx context.Context, crs string, assets []model.Asset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.StoreError{Op: "station_assets.replace", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM station_assets WHERE crs = $1`, crs); err != nil {
		return &model.StoreError{Op: "station_assets.replace", Err: err}
	}

	for i, a := range assets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO station_assets (id, crs, kind, title, url, position, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
			uuid.New().String(), crs, a.Kind, a.Title, a.URL, i,
		); err != nil {
			return &model.StoreError{Op: "station_assets.replace", Err: fmt.Errorf("アセット %q の登録に失敗しました: %w", a.Title, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &model.StoreError{Op: "station_assets.replace", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}
	return nil
}
