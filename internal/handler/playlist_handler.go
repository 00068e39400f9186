package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/railwatch/internal/playlist"
	"github.com/hitoshi/railwatch/internal/validation"
)

// PlaylistServiceInterface はプレイリストハンドラーが必要とするサービスインターフェース。
type PlaylistServiceInterface interface {
	Playlist(ctx context.Context, params validation.PlaylistParams) (*playlist.Playlist, error)
}

// PlaylistHandler はジャーニープレイリストのHTTPハンドラー。
type PlaylistHandler struct {
	service PlaylistServiceInterface
	logger  *slog.Logger
}

// NewPlaylistHandler はPlaylistHandlerを生成する。
func NewPlaylistHandler(service PlaylistServiceInterface, logger *slog.Logger) *PlaylistHandler {
	return &PlaylistHandler{service: service, logger: logger}
}

// GetPlaylist はキャッシュ済み時刻表の停車駅ごとのアセットを返す。
// GET /journeyPlaylist?trainUID=X99999&trainDate=YYYY/MM/DD
func (h *PlaylistHandler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Playlist(r.Context(), validation.PlaylistParamsFromQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, p)
}
