// Package playlist はジャーニープレイリストを提供する。
// キャッシュ済みの時刻表の停車駅ごとに、駅に紐づくアセットを並べる。
package playlist

import (
	"context"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/validation"
)

// ScheduleReader は時刻表キャッシュの参照インターフェース。
type ScheduleReader interface {
	FindByKey(ctx context.Context, key string) (*model.CachedSchedule, error)
}

// AssetLister は駅アセットの参照インターフェース。
type AssetLister interface {
	ListByCRS(ctx context.Context, crsCodes []string) (map[string][]model.Asset, error)
}

// Entry はプレイリストの1停車駅。
type Entry struct {
	CRS         string        `json:"crs"`
	Description string        `json:"description"`
	Arrival     string        `json:"arrival,omitempty"`
	Departure   string        `json:"departure,omitempty"`
	Cancelled   bool          `json:"cancelled"`
	Assets      []model.Asset `json:"assets"`
}

// Playlist は1列車・1運行日のジャーニープレイリスト。
type Playlist struct {
	TrainUID  string    `json:"trainUID"`
	TrainDate string    `json:"trainDate"`
	FetchedAt time.Time `json:"fetchedAt"`
	Entries   []Entry   `json:"entries"`
}

// Service はジャーニープレイリストのサービス層。
type Service struct {
	schedules ScheduleReader
	assets    AssetLister
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(schedules ScheduleReader, assets AssetLister) *Service {
	return &Service{schedules: schedules, assets: assets, now: time.Now}
}

// Playlist はキャッシュ済み時刻表からプレイリストを組み立てる。
// キャッシュが存在しない場合は model.ErrScheduleNotCached を返す。
// CRSを持たない停車点（信号所など）はプレイリストに含めない。
func (s *Service) Playlist(ctx context.Context, params validation.PlaylistParams) (*Playlist, error) {
	if err := validation.Struct(params); err != nil {
		return nil, err
	}
	date, err := validation.ResolveDate("trainDate", params.TrainDate, s.now())
	if err != nil {
		return nil, err
	}

	cached, err := s.schedules.FindByKey(ctx, model.CompositeKey(params.TrainUID, date))
	if err != nil {
		return nil, err
	}
	if cached == nil {
		return nil, model.ErrScheduleNotCached
	}

	var codes []string
	seen := make(map[string]bool)
	for _, stop := range cached.Schedule.Stops {
		if stop.CRS != "" && !seen[stop.CRS] {
			seen[stop.CRS] = true
			codes = append(codes, stop.CRS)
		}
	}

	assets, err := s.assets.ListByCRS(ctx, codes)
	if err != nil {
		return nil, err
	}

	p := &Playlist{
		TrainUID:  cached.TrainUID,
		TrainDate: model.FormatPublicDate(cached.ServiceDate),
		FetchedAt: cached.FetchedAt,
		Entries:   make([]Entry, 0, len(cached.Schedule.Stops)),
	}
	for _, stop := range cached.Schedule.Stops {
		if stop.CRS == "" {
			continue
		}
		stopAssets := assets[stop.CRS]
		if stopAssets == nil {
			stopAssets = []model.Asset{}
		}
		p.Entries = append(p.Entries, Entry{
			CRS:         stop.CRS,
			Description: stop.Description,
			Arrival:     stop.BookedArrival,
			Departure:   stop.BookedDeparture,
			Cancelled:   stop.Cancelled,
			Assets:      stopAssets,
		})
	}
	return p, nil
}
