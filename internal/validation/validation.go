// Package validation はリクエストパラメータの構造的な検証を提供する。
// go-playground/validator にカスタムタグ（train_uid, service_date, crs, hhmm）を登録し、
// 最初に失敗したフィールドを model.ValidationError として返す。
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/railwatch/internal/model"
)

var (
	trainUIDPattern   = regexp.MustCompile(`^[A-Z]\d{5}$`)
	stationPattern    = regexp.MustCompile(`^[A-Z]{3}$`)
	timeOfDayPattern  = regexp.MustCompile(`^([01]\d|2[0-3])[0-5]\d$`)
	publicDatePattern = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`)
	isoDatePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// reasons はタグごとのエラー理由。
var reasons = map[string]string{
	"required":     "is required",
	"train_uid":    "must be an uppercase letter followed by 5 digits (e.g. G12345)",
	"service_date": "must be a calendar date formatted YYYY/MM/DD",
	"crs":          "must be a 3-letter uppercase station code",
	"hhmm":         "must be a 24-hour time formatted HHMM",
	"http_url":     "must be an absolute http(s) URL",
	"max":          "is too long",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーのフィールド名はクエリパラメータ名、なければYAMLのキー名を使う
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"query", "yaml"} {
			name, _, _ := strings.Cut(f.Tag.Get(key), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})

	mustRegister(v, "train_uid", matchString(trainUIDPattern))
	mustRegister(v, "crs", matchString(stationPattern))
	mustRegister(v, "hhmm", matchString(timeOfDayPattern))
	mustRegister(v, "service_date", func(fl validator.FieldLevel) bool {
		return isServiceDate(fl.Field().String())
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func matchString(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func isServiceDate(s string) bool {
	if !publicDatePattern.MatchString(s) && !isoDatePattern.MatchString(s) {
		return false
	}
	_, err := model.ParseServiceDate(s)
	return err == nil
}

// Struct はリクエスト構造体の全フィールドを検証する。
// 失敗した場合は構造体の宣言順で最初のフィールドの *model.ValidationError を返す。
func Struct(params any) error {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return toValidationError(fieldErrs[0].Field(), fieldErrs[0])
	}
	return err
}

// TrainUID は列車UIDを検証する。
func TrainUID(field, value string) error {
	return checkVar(field, value, "required,train_uid")
}

// StationCode は駅コード（CRS）を検証する。
func StationCode(field, value string) error {
	return checkVar(field, value, "required,crs")
}

// TimeOfDay は任意指定の時刻（HHMM）を検証する。空文字は許可する。
func TimeOfDay(field, value string) error {
	return checkVar(field, value, "omitempty,hhmm")
}

// ServiceDate は運行日を検証して解析する。
// requiredがfalseで値が空の場合はnowの英国暦日を返す。
func ServiceDate(field, value string, required bool, now time.Time) (time.Time, error) {
	tag := "omitempty,service_date"
	if required {
		tag = "required,service_date"
	}
	if err := checkVar(field, value, tag); err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return model.Today(now), nil
	}
	return model.ParseServiceDate(value)
}

func checkVar(field, value, tag string) error {
	err := validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return toValidationError(field, fieldErrs[0])
	}
	return err
}

func toValidationError(field string, fe validator.FieldError) *model.ValidationError {
	reason, ok := reasons[fe.Tag()]
	if !ok {
		reason = "failed on " + fe.Tag()
	}
	return model.NewValidationError(field, reason)
}
