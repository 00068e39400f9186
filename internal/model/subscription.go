// Package model はドメインモデルを定義する。
package model

import "time"

// Subscription は監視対象の列車（列車UIDと運行日の組）を表す。
// Keyは CompositeKey(TrainUID, ServiceDate) と常に一致する。
type Subscription struct {
	Key         string
	TrainUID    string
	ServiceDate time.Time
	ErrorCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RefreshRequest はファンアウトからリフレッシュ処理へ渡される非永続メッセージ。
// TrainDateは公開フォーマット（YYYY/MM/DD）で運ばれる。
type RefreshRequest struct {
	TrainUID  string `json:"trainUID"`
	TrainDate string `json:"trainDate"`
}

// NewRefreshRequest は購読からリフレッシュ要求を生成する。
func NewRefreshRequest(sub *Subscription) RefreshRequest {
	return RefreshRequest{
		TrainUID:  sub.TrainUID,
		TrainDate: FormatPublicDate(sub.ServiceDate),
	}
}

// TriggerMessage はタイマー（poll / hourlyCleanup / dailyCleanup）が発行するメッセージ。
// 内容はログ用途のみで、処理には影響しない。
type TriggerMessage struct {
	Topic   string    `json:"topic"`
	FiredAt time.Time `json:"firedAt"`
}
