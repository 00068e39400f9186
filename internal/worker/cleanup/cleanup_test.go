package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/model"
)

// memoryStore は運行日とerror_countのみを持つインメモリの購読/キャッシュ。
type memoryStore struct {
	mu        sync.Mutex
	dates     map[string]time.Time
	errCounts map[string]int
	err       error
	cutoffs   []time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{dates: map[string]time.Time{}, errCounts: map[string]int{}}
}

func (m *memoryStore) add(uid string, d time.Time, errorCount int) string {
	key := model.CompositeKey(uid, d)
	m.dates[key] = d
	m.errCounts[key] = errorCount
	return key
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.dates[key]
	return ok
}

func (m *memoryStore) DeleteServiceDateBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for k, d := range m.dates {
		if d.Before(cutoff) {
			delete(m.dates, k)
			delete(m.errCounts, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) DeleteErrorCountAbove(ctx context.Context, ceiling int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for k, c := range m.errCounts {
		if c > ceiling {
			delete(m.dates, k)
			delete(m.errCounts, k)
			n++
		}
	}
	return n, nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// fixedNow はロンドン時間 2024-03-10 12:00。
var fixedNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestSweeper(subs, schedules *memoryStore, buf *bytes.Buffer) *Sweeper {
	s := NewSweeper(subs, schedules, nil, newTestLogger(buf))
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestNewSweeper_Defaults(t *testing.T) {
	var buf bytes.Buffer
	s := NewSweeper(newMemoryStore(), newMemoryStore(), nil, newTestLogger(&buf))

	if s.RetentionDays != 1 {
		t.Errorf("RetentionDays = %d, want 1", s.RetentionDays)
	}
	if s.ErrorCeiling != 20 {
		t.Errorf("ErrorCeiling = %d, want 20", s.ErrorCeiling)
	}
}

func TestSweeper_Cutoff(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSweeper(newMemoryStore(), newMemoryStore(), &buf)
	s.RetentionDays = 2

	want := time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC)
	if got := s.Cutoff(); !got.Equal(want) {
		t.Errorf("Cutoff = %v, want %v", got, want)
	}
}

// 運行日が3日前の購読は削除され、当日の購読は残る
func TestAgeSweep_RemovesOnlyExpired(t *testing.T) {
	var buf bytes.Buffer
	subs := newMemoryStore()
	schedules := newMemoryStore()
	today := model.Today(fixedNow)
	oldKey := subs.add("G12345", today.AddDate(0, 0, -3), 0)
	currentKey := subs.add("G12345", today, 0)
	oldSchedule := schedules.add("G12345", today.AddDate(0, 0, -3), 0)

	s := newTestSweeper(subs, schedules, &buf)
	if err := s.AgeSweep(context.Background()); err != nil {
		t.Fatalf("AgeSweep() がエラーを返した: %v", err)
	}

	if subs.has(oldKey) {
		t.Error("3日前の購読が削除されていない")
	}
	if !subs.has(currentKey) {
		t.Error("当日の購読が削除された")
	}
	if schedules.has(oldSchedule) {
		t.Error("3日前の時刻表キャッシュが削除されていない")
	}
}

// 保持期間の境界: cutoff当日（昨日）のレコードは残る
func TestAgeSweep_KeepsRecordOnCutoffDay(t *testing.T) {
	var buf bytes.Buffer
	subs := newMemoryStore()
	yesterday := subs.add("G12345", model.Today(fixedNow).AddDate(0, 0, -1), 0)

	s := newTestSweeper(subs, newMemoryStore(), &buf)
	if err := s.AgeSweep(context.Background()); err != nil {
		t.Fatalf("AgeSweep() がエラーを返した: %v", err)
	}
	if !subs.has(yesterday) {
		t.Error("保持期間内の購読が削除された")
	}
}

func TestAgeSweep_NoMatchesIsNoop(t *testing.T) {
	var buf bytes.Buffer
	s := newTestSweeper(newMemoryStore(), newMemoryStore(), &buf)

	if err := s.AgeSweep(context.Background()); err != nil {
		t.Fatalf("AgeSweep() は削除対象がなくてもエラーを返してはならない: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("ログ行数 = %d, want 2", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("ログのパースに失敗: %v", err)
	}
	if entry["deleted_count"] != float64(0) {
		t.Errorf("deleted_count = %v, want 0", entry["deleted_count"])
	}
	if entry["cutoff"] != "2024-03-09" {
		t.Errorf("cutoff = %v, want 2024-03-09", entry["cutoff"])
	}
}

// 購読の削除に失敗しても時刻表キャッシュの削除は実行される
func TestAgeSweep_IndependentFailureDomains(t *testing.T) {
	var buf bytes.Buffer
	subs := newMemoryStore()
	subs.err = errors.New("connection reset")
	schedules := newMemoryStore()
	old := schedules.add("G12345", model.Today(fixedNow).AddDate(0, 0, -5), 0)

	s := newTestSweeper(subs, schedules, &buf)
	err := s.AgeSweep(context.Background())
	if err == nil {
		t.Fatal("AgeSweep() は購読の削除失敗を返すべき")
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("err = %v", err)
	}
	if schedules.has(old) {
		t.Error("購読の失敗で時刻表キャッシュの削除が妨げられた")
	}
}

// N回失敗した購読は上限C<Nのエラースイープで削除される
func TestErrorSweep_EvictsAboveCeiling(t *testing.T) {
	var buf bytes.Buffer
	subs := newMemoryStore()
	today := model.Today(fixedNow)
	unhealthy := subs.add("G00001", today, 21)
	atCeiling := subs.add("G00002", today, 20)
	healthy := subs.add("G00003", today, 0)

	schedules := newMemoryStore()
	cached := schedules.add("G00001", today, 0)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	s := NewSweeper(subs, schedules, collector, newTestLogger(&buf))

	if err := s.ErrorSweep(context.Background()); err != nil {
		t.Fatalf("ErrorSweep() がエラーを返した: %v", err)
	}

	if subs.has(unhealthy) {
		t.Error("上限を超えた購読が削除されていない")
	}
	if !subs.has(atCeiling) || !subs.has(healthy) {
		t.Error("上限以下の購読が削除された")
	}
	if !schedules.has(cached) {
		t.Error("エラースイープで時刻表キャッシュを削除してはならない")
	}

	if !strings.Contains(buf.String(), `"error_ceiling":20`) {
		t.Error("ログにerror_ceilingが含まれていない")
	}

	gathered, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var swept float64
	for _, mf := range gathered {
		if mf.GetName() == "railwatch_swept_records_total" {
			swept = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	if swept != 1 {
		t.Errorf("swept_records_total = %v, want 1", swept)
	}
}

func TestHandleErrorTrigger_RunsSweep(t *testing.T) {
	var buf bytes.Buffer
	subs := newMemoryStore()
	key := subs.add("G00001", model.Today(fixedNow), 99)
	s := newTestSweeper(subs, newMemoryStore(), &buf)

	body, _ := json.Marshal(model.TriggerMessage{Topic: "hourlyCleanup", FiredAt: fixedNow})
	if err := s.HandleErrorTrigger(context.Background(), body); err != nil {
		t.Fatalf("HandleErrorTrigger() がエラーを返した: %v", err)
	}
	if subs.has(key) {
		t.Error("トリガーでエラースイープが実行されていない")
	}
}

func TestHandleAgeTrigger_ToleratesUndecodableBody(t *testing.T) {
	var buf bytes.Buffer
	subs := newMemoryStore()
	s := newTestSweeper(subs, newMemoryStore(), &buf)

	if err := s.HandleAgeTrigger(context.Background(), []byte("garbage")); err != nil {
		t.Fatalf("HandleAgeTrigger() がエラーを返した: %v", err)
	}
	if len(subs.cutoffs) != 1 {
		t.Errorf("AgeSweep が実行されていない")
	}
}
