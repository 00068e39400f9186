package poll

import (
	"bytes"
	"context"
	"iter"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/railwatch/internal/model"
)

// --- モック定義 ---

// memoryStore は購読と時刻表キャッシュのインメモリ実装。
type memoryStore struct {
	mu        sync.Mutex
	subs      map[string]*model.Subscription
	schedules map[string]*model.CachedSchedule
	listErr   error
	putErr    error
}

func newMemoryStore(subs ...*model.Subscription) *memoryStore {
	s := &memoryStore{
		subs:      make(map[string]*model.Subscription),
		schedules: make(map[string]*model.CachedSchedule),
	}
	for _, sub := range subs {
		s.subs[sub.Key] = sub
	}
	return s
}

func (s *memoryStore) ListAll(ctx context.Context) iter.Seq2[*model.Subscription, error] {
	return func(yield func(*model.Subscription, error) bool) {
		if s.listErr != nil {
			yield(nil, s.listErr)
			return
		}
		s.mu.Lock()
		keys := make([]string, 0, len(s.subs))
		for k := range s.subs {
			keys = append(keys, k)
		}
		s.mu.Unlock()
		sort.Strings(keys)

		for _, k := range keys {
			s.mu.Lock()
			sub := *s.subs[k]
			s.mu.Unlock()
			if !yield(&sub, nil) {
				return
			}
		}
	}
}

func (s *memoryStore) IncrementError(ctx context.Context, key string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[key]
	if !ok {
		return 0, false, nil
	}
	sub.ErrorCount++
	return sub.ErrorCount, true, nil
}

func (s *memoryStore) ResetErrors(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[key]; ok {
		sub.ErrorCount = 0
	}
	return nil
}

func (s *memoryStore) Put(ctx context.Context, schedule *model.CachedSchedule) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[schedule.Key] = schedule
	return nil
}

func (s *memoryStore) errorCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[key].ErrorCount
}

// mockPublisher はPublisherのテスト用モック。
type mockPublisher struct {
	mu          sync.Mutex
	publishFunc func(ctx context.Context, topic string, body any) error
	topics      []string
	bodies      []any
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, body any) error {
	m.mu.Lock()
	m.topics = append(m.topics, topic)
	m.bodies = append(m.bodies, body)
	m.mu.Unlock()
	if m.publishFunc != nil {
		return m.publishFunc(ctx, topic, body)
	}
	return nil
}

// mockFetcher はScheduleFetcherのテスト用モック。
type mockFetcher struct {
	queryServiceFunc func(ctx context.Context, trainUID string, date time.Time) (*model.ServiceSchedule, error)
	calls            int
}

func (m *mockFetcher) QueryService(ctx context.Context, trainUID string, date time.Time) (*model.ServiceSchedule, error) {
	m.calls++
	if m.queryServiceFunc != nil {
		return m.queryServiceFunc(ctx, trainUID, date)
	}
	return &model.ServiceSchedule{TrainUID: trainUID, RunDate: date.Format(model.ISODateLayout)}, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newSubscription(uid string, d time.Time) *model.Subscription {
	return &model.Subscription{
		Key:         model.CompositeKey(uid, d),
		TrainUID:    uid,
		ServiceDate: d,
	}
}

var serviceDay = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
