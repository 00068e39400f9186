package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/subscription"
	"github.com/hitoshi/railwatch/internal/validation"
)

// SubscriptionServiceInterface は購読ハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	Subscribe(ctx context.Context, params validation.SubscribeParams) (*subscription.Result, error)
}

// SubscriptionHandler は購読登録のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
	logger  *slog.Logger
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, logger: logger}
}

// subscriptionResponse は購読登録のAPIレスポンス。
type subscriptionResponse struct {
	Key           string `json:"key"`
	TrainUID      string `json:"trainUID"`
	TrainDate     string `json:"trainDate"`
	ErrorCount    int    `json:"errorCount"`
	RefreshQueued bool   `json:"refreshQueued"`
}

// Subscribe は列車の購読を登録する。
// PUT /subscribe?trainUID=X99999&trainDate=YYYY/MM/DD
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Subscribe(r.Context(), validation.SubscribeParamsFromQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	sub := result.Subscription
	writeJSON(w, subscriptionResponse{
		Key:           sub.Key,
		TrainUID:      sub.TrainUID,
		TrainDate:     model.FormatPublicDate(sub.ServiceDate),
		ErrorCount:    sub.ErrorCount,
		RefreshQueued: result.RefreshQueued,
	})
}
