package station

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/validation"
)

// StationAssets は1駅分のプレイリスト用アセット。Assetsの並び順がpositionになる。
type StationAssets struct {
	CRS    string
	Assets []model.Asset
}

type assetFileEntry struct {
	CRS    string           `yaml:"crs" validate:"required,crs"`
	Assets []assetFileAsset `yaml:"assets" validate:"dive"`
}

type assetFileAsset struct {
	Kind  string `yaml:"kind" validate:"required,max=32"`
	Title string `yaml:"title" validate:"required,max=255"`
	URL   string `yaml:"url" validate:"required,http_url"`
}

// ParseAssets はアセット定義YAMLを解析し、駅コード順に返す。
// assetsが空の駅はその駅のアセットを消去する指定として扱う。
func ParseAssets(data []byte) ([]StationAssets, error) {
	var entries []assetFileEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("アセット定義の解析に失敗しました: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	result := make([]StationAssets, 0, len(entries))
	for i, e := range entries {
		if err := validation.Struct(e); err != nil {
			return nil, fmt.Errorf("アセット定義 %d 件目が不正です: %w", i+1, err)
		}
		if seen[e.CRS] {
			return nil, fmt.Errorf("駅コード %s のアセット定義が重複しています", e.CRS)
		}
		seen[e.CRS] = true

		assets := make([]model.Asset, 0, len(e.Assets))
		for _, a := range e.Assets {
			assets = append(assets, model.Asset{CRS: e.CRS, Kind: a.Kind, Title: a.Title, URL: a.URL})
		}
		result = append(result, StationAssets{CRS: e.CRS, Assets: assets})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].CRS < result[j].CRS })
	return result, nil
}
