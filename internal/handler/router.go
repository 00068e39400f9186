// Package handler はHTTP APIのルーティングとハンドラーを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/railwatch/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	Stations     StationListerFunc
	Timetable    TimetableServiceInterface
	Subscription SubscriptionServiceInterface
	Playlist     PlaylistServiceInterface

	// DB はヘルスチェックで疎通確認する。
	DB Pinger
	// Metrics はnilでなければ /metrics に公開する。
	Metrics http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Recovery → Logging → APIHeaders → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
// 既知のパスに対する定義外のメソッドは403を返す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewAPIHeadersMiddleware())

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusForbidden, "method "+r.Method+" is not allowed on "+r.URL.Path)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "not found")
	})

	stationHandler := NewStationHandler(deps.Stations, deps.Logger)
	scheduleHandler := NewScheduleHandler(deps.Timetable, deps.Logger)
	subHandler := NewSubscriptionHandler(deps.Subscription, deps.Logger)
	playlistHandler := NewPlaylistHandler(deps.Playlist, deps.Logger)
	healthHandler := NewHealthHandler(deps.DB, deps.Logger)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// --- 公開API ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Get("/stations", stationHandler.ListStations)
		r.Get("/schedules", scheduleHandler.Search)
		r.Put("/subscribe", subHandler.Subscribe)
		r.Get("/journeyPlaylist", playlistHandler.GetPlaylist)
	})

	return r
}
