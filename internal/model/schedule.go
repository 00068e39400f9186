package model

import "time"

// ServiceSchedule は1列車・1運行日の停車駅ごとの時刻表。
type ServiceSchedule struct {
	TrainUID     string `json:"trainUID"`
	RunDate      string `json:"runDate"`
	Operator     string `json:"toc"`
	OperatorCode string `json:"tocCode"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Stops        []Stop `json:"stops"`
}

// Stop は時刻表内の1停車駅。
type Stop struct {
	CRS               string `json:"crs,omitempty"`
	Tiploc            string `json:"tiploc"`
	Description       string `json:"description"`
	BookedArrival     string `json:"bookedArrival,omitempty"`
	BookedDeparture   string `json:"bookedDeparture,omitempty"`
	RealtimeArrival   string `json:"realtimeArrival,omitempty"`
	RealtimeDeparture string `json:"realtimeDeparture,omitempty"`
	Platform          string `json:"platform,omitempty"`
	Cancelled         bool   `json:"cancelled"`
}

// CachedSchedule は購読ごとに最後に取得した時刻表のスナップショット。
// KeyとServiceDateは対応する購読と同じ値を持つ。
type CachedSchedule struct {
	Key         string
	TrainUID    string
	ServiceDate time.Time
	Schedule    ServiceSchedule
	FetchedAt   time.Time
}

// Departure は駅間検索（/schedules）の結果1行。
type Departure struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	TimetableTime string `json:"timetableTime"`
	TimetableDate string `json:"timetableDate"`
	TrainUID      string `json:"trainUID"`
	TOC           string `json:"toc"`
	TOCCode       string `json:"tocCode"`
}

// Station は駅の参照データ。
type Station struct {
	CRS  string `json:"crs" yaml:"crs"`
	Name string `json:"name" yaml:"name"`
}

// Asset は駅に紐づく再生用アセット（ジャーニープレイリスト用）。
type Asset struct {
	CRS   string `json:"crs"`
	Kind  string `json:"kind"`
	Title string `json:"title"`
	URL   string `json:"url"`
}
