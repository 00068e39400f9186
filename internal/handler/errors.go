package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/railwatch/internal/middleware"
	"github.com/hitoshi/railwatch/internal/model"
)

// writeJSON はステータス200でvをJSONとして書き込む。
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// handleServiceError はサービス層のエラーを適切なHTTPレスポンスに変換する。
//
//	ValidationError    → 500（メッセージ付き）
//	UpstreamError      → 500（メッセージ付き）
//	ErrScheduleNotCached → 404
//	その他             → 500（詳細はログのみ）
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var valErr *model.ValidationError
	if errors.As(err, &valErr) {
		middleware.WriteError(w, http.StatusInternalServerError, valErr.Error())
		return
	}

	var upErr *model.UpstreamError
	if errors.As(err, &upErr) {
		middleware.WriteError(w, http.StatusInternalServerError, upErr.Error())
		return
	}

	if errors.Is(err, model.ErrScheduleNotCached) {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	logger.Error("リクエストの処理に失敗しました",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}
