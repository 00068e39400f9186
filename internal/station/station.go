// Package station は駅の参照データ（CRSコードと駅名）を提供する。
package station

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/validation"
)

//go:embed stations.yaml
var stationsYAML []byte

var (
	loadOnce sync.Once
	loaded   []model.Station
	loadErr  error
)

// Parse はYAMLの駅一覧を解析し、CRSコード順に並べて返す。
func Parse(data []byte) ([]model.Station, error) {
	var stations []model.Station
	if err := yaml.Unmarshal(data, &stations); err != nil {
		return nil, fmt.Errorf("駅データの解析に失敗しました: %w", err)
	}

	seen := make(map[string]bool, len(stations))
	for _, s := range stations {
		if err := validation.StationCode("crs", s.CRS); err != nil {
			return nil, fmt.Errorf("駅データが不正です: %w", err)
		}
		if seen[s.CRS] {
			return nil, fmt.Errorf("駅コード %s が重複しています", s.CRS)
		}
		seen[s.CRS] = true
	}

	sort.Slice(stations, func(i, j int) bool { return stations[i].CRS < stations[j].CRS })
	return stations, nil
}

// List は組み込みの駅一覧を返す。初回呼び出し時に一度だけ解析する。
// 返したスライスは呼び出し側で変更しないこと。
func List() ([]model.Station, error) {
	loadOnce.Do(func() {
		loaded, loadErr = Parse(stationsYAML)
	})
	return loaded, loadErr
}
