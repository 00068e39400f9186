package validation

import (
	"net/url"
	"time"
)

// SubscribeParams はPUT /subscribe のクエリパラメータ。
type SubscribeParams struct {
	TrainUID  string `query:"trainUID" validate:"required,train_uid"`
	TrainDate string `query:"trainDate" validate:"omitempty,service_date"`
}

// SubscribeParamsFromQuery はクエリからSubscribeParamsを組み立てる。
func SubscribeParamsFromQuery(q url.Values) SubscribeParams {
	return SubscribeParams{
		TrainUID:  q.Get("trainUID"),
		TrainDate: q.Get("trainDate"),
	}
}

// ScheduleParams はGET /schedules のクエリパラメータ。
// Endが空の場合は発駅のみで検索する。
type ScheduleParams struct {
	Start string `query:"start" validate:"required,crs"`
	End   string `query:"end" validate:"omitempty,crs"`
	Date  string `query:"date" validate:"omitempty,service_date"`
	Time  string `query:"time" validate:"omitempty,hhmm"`
}

// ScheduleParamsFromQuery はクエリからScheduleParamsを組み立てる。
func ScheduleParamsFromQuery(q url.Values) ScheduleParams {
	return ScheduleParams{
		Start: q.Get("start"),
		End:   q.Get("end"),
		Date:  q.Get("date"),
		Time:  q.Get("time"),
	}
}

// PlaylistParams はGET /journeyPlaylist のクエリパラメータ。
type PlaylistParams struct {
	TrainUID  string `query:"trainUID" validate:"required,train_uid"`
	TrainDate string `query:"trainDate" validate:"omitempty,service_date"`
}

// PlaylistParamsFromQuery はクエリからPlaylistParamsを組み立てる。
func PlaylistParamsFromQuery(q url.Values) PlaylistParams {
	return PlaylistParams{
		TrainUID:  q.Get("trainUID"),
		TrainDate: q.Get("trainDate"),
	}
}

// ResolveDate は検証済みの任意日付を解析する。空の場合はnowの英国暦日を返す。
// Struct による検証後に呼ぶこと。
func ResolveDate(field, value string, now time.Time) (time.Time, error) {
	return ServiceDate(field, value, false, now)
}
