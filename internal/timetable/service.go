// Package timetable は駅間の出発時刻検索を提供する。
package timetable

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/rtt"
	"github.com/hitoshi/railwatch/internal/validation"
)

// DepartureFinder は上流の出発時刻検索インターフェース。
type DepartureFinder interface {
	QueryDepartures(ctx context.Context, q rtt.DepartureQuery) ([]model.Departure, error)
}

// Service は時刻表検索のサービス層。
type Service struct {
	finder DepartureFinder
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(finder DepartureFinder, logger *slog.Logger) *Service {
	return &Service{finder: finder, logger: logger, now: time.Now}
}

// Search はパラメータを検証し、上流に出発時刻を問い合わせる。
// 日付が省略された場合は英国の当日で検索する。
func (s *Service) Search(ctx context.Context, params validation.ScheduleParams) ([]model.Departure, error) {
	if err := validation.Struct(params); err != nil {
		return nil, err
	}
	date, err := validation.ResolveDate("date", params.Date, s.now())
	if err != nil {
		return nil, err
	}

	departures, err := s.finder.QueryDepartures(ctx, rtt.DepartureQuery{
		Origin:      params.Start,
		Destination: params.End,
		Date:        date,
		Time:        params.Time,
	})
	if err != nil {
		s.logger.Warn("出発時刻の検索に失敗しました",
			slog.String("start", params.Start),
			slog.String("end", params.End),
			slog.String("date", date.Format(model.ISODateLayout)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return departures, nil
}
