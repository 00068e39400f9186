package model

import (
	"errors"
	"fmt"
)

// ValidationError はクライアント入力の構造的な不正を表す。再試行されない。
type ValidationError struct {
	Field  string // クエリパラメータ名
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError はValidationErrorを生成する。
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamErrorKind は上流APIエラーの分類。
type UpstreamErrorKind string

const (
	// UpstreamNotFound は指定列車・日付の運行が存在しない。
	UpstreamNotFound UpstreamErrorKind = "not_found"
	// UpstreamReported は上流のペイロード自体がエラーを報告した。
	UpstreamReported UpstreamErrorKind = "upstream_reported"
	// UpstreamMalformed は期待した構造のレスポンスではなかった。
	UpstreamMalformed UpstreamErrorKind = "malformed_response"
	// UpstreamUnavailable は通信失敗または5xx。
	UpstreamUnavailable UpstreamErrorKind = "unavailable"
)

// UpstreamError は上流の時刻表プロバイダに起因する失敗。
type UpstreamError struct {
	Kind    UpstreamErrorKind
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StoreError は永続化操作の失敗。同一呼び出し内では再試行しない。
type StoreError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ChannelError はメッセージ発行の失敗。
type ChannelError struct {
	Topic string
	Err   error
}

// Error はerrorインターフェースを実装する。
func (e *ChannelError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Topic, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *ChannelError) Unwrap() error {
	return e.Err
}

// ErrScheduleNotCached はキャッシュに時刻表が存在しないことを示す。
var ErrScheduleNotCached = errors.New("schedule is not cached")

// UpstreamKind はerrがUpstreamErrorであればその分類を返す。
func UpstreamKind(err error) (UpstreamErrorKind, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Kind, true
	}
	return "", false
}
