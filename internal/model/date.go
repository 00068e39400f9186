package model

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Europe/London をdistroless環境でも解決するため
)

const (
	// PublicDateLayout は公開APIで使用する日付フォーマット。
	PublicDateLayout = "2006/01/02"
	// ISODateLayout はキーと上流APIで使用する日付フォーマット。
	ISODateLayout = "2006-01-02"
)

// railLocation は運行日の暦を決めるタイムゾーン。
var railLocation = loadRailLocation()

func loadRailLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Today はnowが属する英国の暦日を UTC 0時の time.Time として返す。
func Today(now time.Time) time.Time {
	y, m, d := now.In(railLocation).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseServiceDate は YYYY/MM/DD または YYYY-MM-DD 形式の運行日を解析する。
// 実在しない日付（2024/02/30 など）はエラーになる。
func ParseServiceDate(s string) (time.Time, error) {
	layout := PublicDateLayout
	if strings.Contains(s, "-") {
		layout = ISODateLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("運行日の解析に失敗しました: %w", err)
	}
	return t, nil
}

// FormatPublicDate は運行日を YYYY/MM/DD 形式で返す。
func FormatPublicDate(t time.Time) string {
	return t.Format(PublicDateLayout)
}

// CompositeKey は購読とキャッシュ済み時刻表で共有する複合キーを返す。
// 形式は "<trainUID>_<YYYY-MM-DD>"。
func CompositeKey(trainUID string, serviceDate time.Time) string {
	return trainUID + "_" + serviceDate.Format(ISODateLayout)
}
