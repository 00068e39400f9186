// Package rtt はRealtime Trains APIのクライアントを提供する。
// 駅間の出発検索と、列車・運行日単位の停車駅時刻表の取得を行う。
// リトライはこの層では行わない（ポーリングの次サイクルで暗黙に再試行される）。
package rtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/railwatch/internal/model"
)

const (
	// DefaultBaseURL はRealtime Trains APIのベースURL。
	DefaultBaseURL = "https://api.rtt.io/api/v1"
	// maxBodySize はレスポンスボディの最大読み取りサイズ（5MB）。
	maxBodySize = 5 << 20
)

// Config はClientの接続設定。
type Config struct {
	BaseURL  string
	Username string
	Password string
	// RateLimit は上流への最大リクエストレート（req/sec）。0以下の場合は無制限。
	RateLimit float64
	Burst     int
}

// DepartureQuery は駅間検索の条件。
// Destinationが空の場合は発駅のみ、Timeが空の場合は時刻指定なしで検索する。
type DepartureQuery struct {
	Origin      string
	Destination string
	Date        time.Time
	Time        string
}

// Client はRealtime Trains APIのクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, cfg Config, logger *slog.Logger) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// QueryDepartures は発駅（と任意の着駅）から出発する旅客列車を出発順に返す。
// 旅客以外の列車は除外する。servicesが存在しないレスポンスはMalformedResponseとなる。
func (c *Client) QueryDepartures(ctx context.Context, q DepartureQuery) ([]model.Departure, error) {
	path := "/json/search/" + q.Origin
	if q.Destination != "" {
		path += "/to/" + q.Destination
	}
	path += "/" + q.Date.Format("2006/01/02")
	if q.Time != "" {
		path += "/" + q.Time
	}

	var resp searchResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.Services == nil {
		return nil, &model.UpstreamError{
			Kind:    model.UpstreamMalformed,
			Message: "レスポンスにservicesが含まれていません",
		}
	}

	departures := make([]model.Departure, 0, len(*resp.Services))
	for _, s := range *resp.Services {
		if !s.IsPassenger {
			continue
		}
		departures = append(departures, model.Departure{
			Origin:        joinDescriptions(s.LocationDetail.Origin),
			Destination:   joinDescriptions(s.LocationDetail.Destination),
			TimetableTime: s.LocationDetail.GbttBookedDeparture,
			TimetableDate: s.RunDate,
			TrainUID:      s.ServiceUID,
			TOC:           s.AtocName,
			TOCCode:       s.AtocCode,
		})
	}

	return departures, nil
}

// QueryService は列車UIDと運行日から停車駅ごとの時刻表を取得する。
func (c *Client) QueryService(ctx context.Context, trainUID string, date time.Time) (*model.ServiceSchedule, error) {
	path := "/json/service/" + trainUID + "/" + date.Format("2006/01/02")

	var resp serviceDetailResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.Locations == nil {
		return nil, &model.UpstreamError{
			Kind:    model.UpstreamMalformed,
			Message: "レスポンスにlocationsが含まれていません",
		}
	}

	schedule := &model.ServiceSchedule{
		TrainUID:     resp.ServiceUID,
		RunDate:      resp.RunDate,
		Operator:     resp.AtocName,
		OperatorCode: resp.AtocCode,
		Origin:       joinDescriptions(resp.Origin),
		Destination:  joinDescriptions(resp.Destination),
		Stops:        make([]model.Stop, 0, len(*resp.Locations)),
	}
	for _, loc := range *resp.Locations {
		schedule.Stops = append(schedule.Stops, model.Stop{
			CRS:               loc.CRS,
			Tiploc:            loc.Tiploc,
			Description:       loc.Description,
			BookedArrival:     loc.GbttBookedArrival,
			BookedDeparture:   loc.GbttBookedDeparture,
			RealtimeArrival:   loc.RealtimeArrival,
			RealtimeDeparture: loc.RealtimeDeparture,
			Platform:          loc.Platform,
			Cancelled:         strings.HasPrefix(loc.DisplayAs, "CANCELLED"),
		})
	}

	return schedule, nil
}

// get はGETリクエストを実行し、レスポンスをoutにデコードする。
// HTTPステータスとペイロード内のerrorフィールドをUpstreamErrorに分類する。
func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &model.UpstreamError{Kind: model.UpstreamUnavailable, Message: "レート制限の待機が中断されました", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Railwatch/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Realtime Trains APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return &model.UpstreamError{Kind: model.UpstreamUnavailable, Message: "HTTPリクエスト失敗", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &model.UpstreamError{Kind: model.UpstreamUnavailable, Message: "レスポンスボディの読み取りに失敗しました", Err: err}
	}

	c.logger.Debug("Realtime Trains APIを呼び出しました",
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	var envelope errorEnvelope
	// エラー本文がJSONでない場合もあるため、デコード失敗はここでは無視する
	_ = json.Unmarshal(body, &envelope)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &model.UpstreamError{Kind: model.UpstreamNotFound, Message: notFoundMessage(envelope.Error, path)}
	case resp.StatusCode >= 500:
		return &model.UpstreamError{
			Kind:    model.UpstreamUnavailable,
			Message: fmt.Sprintf("ステータス %d を返しました", resp.StatusCode),
		}
	case envelope.Error != "":
		return &model.UpstreamError{Kind: model.UpstreamReported, Message: envelope.Error}
	case resp.StatusCode != http.StatusOK:
		return &model.UpstreamError{
			Kind:    model.UpstreamUnavailable,
			Message: fmt.Sprintf("ステータス %d を返しました", resp.StatusCode),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		var syntaxErr *json.SyntaxError
		msg := "レスポンスJSONのパースに失敗しました"
		if errors.As(err, &syntaxErr) {
			msg = "レスポンスがJSONではありません"
		}
		return &model.UpstreamError{Kind: model.UpstreamMalformed, Message: msg, Err: err}
	}

	return nil
}

func notFoundMessage(reported, path string) string {
	if reported != "" {
		return reported
	}
	return "not found: " + path
}

// joinDescriptions は複数の地点名を " / " で連結する（分割・併結列車向け）。
func joinDescriptions(locs []locationName) string {
	names := make([]string, 0, len(locs))
	for _, l := range locs {
		names = append(names, l.Description)
	}
	return strings.Join(names, " / ")
}
