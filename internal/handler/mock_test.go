package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
	"github.com/hitoshi/railwatch/internal/playlist"
	"github.com/hitoshi/railwatch/internal/rtt"
	"github.com/hitoshi/railwatch/internal/validation"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// memorySubscriptions はsubscription.Upserterのインメモリ実装。
type memorySubscriptions struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription
}

func newMemorySubscriptions() *memorySubscriptions {
	return &memorySubscriptions{subs: make(map[string]*model.Subscription)}
}

func (m *memorySubscriptions) Upsert(ctx context.Context, trainUID string, serviceDate time.Time) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.CompositeKey(trainUID, serviceDate)
	sub, ok := m.subs[key]
	if !ok {
		sub = &model.Subscription{Key: key, TrainUID: trainUID, ServiceDate: serviceDate}
		m.subs[key] = sub
	}
	sub.ErrorCount = 0
	copied := *sub
	return &copied, nil
}

// published は発行されたメッセージ。
type published struct {
	topic string
	body  []byte
}

// recordingPublisher は発行内容をJSONで記録するPublisher。
type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, body any) error {
	if p.err != nil {
		return p.err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{topic: topic, body: data})
	return nil
}

// mockDepartureFinder はtimetable.DepartureFinderのモック実装。
type mockDepartureFinder struct {
	queryFn func(ctx context.Context, q rtt.DepartureQuery) ([]model.Departure, error)
	queries []rtt.DepartureQuery
}

func (m *mockDepartureFinder) QueryDepartures(ctx context.Context, q rtt.DepartureQuery) ([]model.Departure, error) {
	m.queries = append(m.queries, q)
	if m.queryFn != nil {
		return m.queryFn(ctx, q)
	}
	return nil, nil
}

// mockPlaylistService はPlaylistServiceInterfaceのモック実装。
type mockPlaylistService struct {
	playlistFn func(ctx context.Context, params validation.PlaylistParams) (*playlist.Playlist, error)
}

func (m *mockPlaylistService) Playlist(ctx context.Context, params validation.PlaylistParams) (*playlist.Playlist, error) {
	if m.playlistFn != nil {
		return m.playlistFn(ctx, params)
	}
	return nil, model.ErrScheduleNotCached
}

// mockPinger はPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}
