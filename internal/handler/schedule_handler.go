package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/validation"
)

// TimetableServiceInterface は時刻表検索ハンドラーが必要とするサービスインターフェース。
type TimetableServiceInterface interface {
	Search(ctx context.Context, params validation.ScheduleParams) ([]model.Departure, error)
}

// ScheduleHandler は時刻表検索のHTTPハンドラー。
type ScheduleHandler struct {
	service TimetableServiceInterface
	logger  *slog.Logger
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(service TimetableServiceInterface, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, logger: logger}
}

// Search は発着駅間の出発列車を検索する。
// GET /schedules?start=CRS&end=CRS&date=YYYY-MM-DD&time=HHMM
func (h *ScheduleHandler) Search(w http.ResponseWriter, r *http.Request) {
	departures, err := h.service.Search(r.Context(), validation.ScheduleParamsFromQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	if departures == nil {
		departures = []model.Departure{}
	}
	writeJSON(w, departures)
}
