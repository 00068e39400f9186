package model

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCompositeKey_UsesISODateOrder(t *testing.T) {
	date := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	got := CompositeKey("G12345", date)
	if got != "G12345_2024-03-10" {
		t.Errorf("CompositeKey = %q, want %q", got, "G12345_2024-03-10")
	}
}

// 日と月が入れ替わる日付同士でキーが衝突しないこと
func TestCompositeKey_DayMonthDoNotCollide(t *testing.T) {
	a := CompositeKey("G12345", time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
	b := CompositeKey("G12345", time.Date(2024, time.October, 3, 0, 0, 0, 0, time.UTC))
	if a == b {
		t.Errorf("keys collide: %q", a)
	}
}

func TestParseServiceDate_AcceptsBothSeparators(t *testing.T) {
	want := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"2024/03/10", "2024-03-10"} {
		got, err := ParseServiceDate(in)
		if err != nil {
			t.Fatalf("ParseServiceDate(%q) がエラーを返した: %v", in, err)
		}
		if !got.Equal(want) {
			t.Errorf("ParseServiceDate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseServiceDate_RejectsImpossibleDate(t *testing.T) {
	if _, err := ParseServiceDate("2024/02/30"); err == nil {
		t.Error("2024/02/30 はエラーになるべき")
	}
}

func TestToday_UsesLondonCalendar(t *testing.T) {
	// 夏時間中のUTC 23:30 はロンドンでは翌日 00:30
	now := time.Date(2024, time.July, 1, 23, 30, 0, 0, time.UTC)

	got := Today(now)
	want := time.Date(2024, time.July, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Today = %v, want %v", got, want)
	}
}

func TestNewRefreshRequest_UsesPublicDateFormat(t *testing.T) {
	sub := &Subscription{
		TrainUID:    "G12345",
		ServiceDate: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
	}

	req := NewRefreshRequest(sub)
	if req.TrainDate != "2024/03/10" {
		t.Errorf("TrainDate = %q, want %q", req.TrainDate, "2024/03/10")
	}
}

func TestUpstreamKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &UpstreamError{Kind: UpstreamReported, Message: "boom"})

	kind, ok := UpstreamKind(err)
	if !ok || kind != UpstreamReported {
		t.Errorf("UpstreamKind = (%q, %v), want (%q, true)", kind, ok, UpstreamReported)
	}

	if _, ok := UpstreamKind(errors.New("plain")); ok {
		t.Error("plain error は UpstreamError ではない")
	}
}
