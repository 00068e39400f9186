package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/railwatch/internal/model"
)

// StationListerFunc は駅一覧を返す関数。本番では station.List を使用する。
type StationListerFunc func() ([]model.Station, error)

// StationHandler は駅一覧のHTTPハンドラー。
type StationHandler struct {
	list   StationListerFunc
	logger *slog.Logger
}

// NewStationHandler はStationHandlerを生成する。
func NewStationHandler(list StationListerFunc, logger *slog.Logger) *StationHandler {
	return &StationHandler{list: list, logger: logger}
}

// ListStations は駅コードと駅名の一覧を返す。
// GET /stations
func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.list()
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, stations)
}
