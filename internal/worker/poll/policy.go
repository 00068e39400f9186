package poll

import (
	"errors"

	"github.com/hitoshi/railwatch/internal/metrics"
	"github.com/hitoshi/railwatch/internal/model"
)

// Outcome はリフレッシュ失敗の分類。
type Outcome int

const (
	// OutcomeCountError は購読のerror_countを増やす失敗（上流障害・不正なメッセージ）。
	OutcomeCountError Outcome = iota
	// OutcomeStoreFailure は永続化の失敗。上流の健全性とは無関係のためカウントしない。
	OutcomeStoreFailure
)

// ClassifyFailure はリフレッシュ中のエラーを分類する。
func ClassifyFailure(err error) Outcome {
	var storeErr *model.StoreError
	if errors.As(err, &storeErr) {
		return OutcomeStoreFailure
	}
	return OutcomeCountError
}

// resultLabel はエラーに対応するrefresh_totalのラベル値を返す。
func resultLabel(err error) string {
	if err == nil {
		return metrics.RefreshSuccess
	}

	var valErr *model.ValidationError
	switch {
	case errors.As(err, &valErr):
		return metrics.RefreshInvalid
	case ClassifyFailure(err) == OutcomeStoreFailure:
		return metrics.RefreshStoreFail
	default:
		return metrics.RefreshUpstreamFail
	}
}
