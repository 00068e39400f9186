package rtt

// 以下はRealtime Trains API（JSON）のワイヤ型。使用するフィールドのみ定義する。

// errorEnvelope はペイロードにエラーを埋め込んだレスポンス。
type errorEnvelope struct {
	Error string `json:"error"`
}

// searchResponse は /json/search のレスポンス。
// servicesキーが存在しない場合はnilのままとなる。
type searchResponse struct {
	Location location   `json:"location"`
	Filter   *location  `json:"filter"`
	Services *[]service `json:"services"`
}

type location struct {
	Name string `json:"name"`
	CRS  string `json:"crs"`
}

type service struct {
	ServiceUID     string         `json:"serviceUid"`
	RunDate        string         `json:"runDate"`
	TrainIdentity  string         `json:"trainIdentity"`
	ServiceType    string         `json:"serviceType"`
	IsPassenger    bool           `json:"isPassenger"`
	AtocCode       string         `json:"atocCode"`
	AtocName       string         `json:"atocName"`
	LocationDetail locationDetail `json:"locationDetail"`
}

type locationDetail struct {
	Origin              []locationName `json:"origin"`
	Destination         []locationName `json:"destination"`
	GbttBookedArrival   string         `json:"gbttBookedArrival"`
	GbttBookedDeparture string         `json:"gbttBookedDeparture"`
	RealtimeDeparture   string         `json:"realtimeDeparture"`
	Platform            string         `json:"platform"`
	DisplayAs           string         `json:"displayAs"`
}

type locationName struct {
	Tiploc      string `json:"tiploc"`
	Description string `json:"description"`
	PublicTime  string `json:"publicTime"`
}

// serviceDetailResponse は /json/service のレスポンス。
type serviceDetailResponse struct {
	ServiceUID  string             `json:"serviceUid"`
	RunDate     string             `json:"runDate"`
	ServiceType string             `json:"serviceType"`
	IsPassenger bool               `json:"isPassenger"`
	AtocCode    string             `json:"atocCode"`
	AtocName    string             `json:"atocName"`
	Origin      []locationName     `json:"origin"`
	Destination []locationName     `json:"destination"`
	Locations   *[]serviceLocation `json:"locations"`
}

type serviceLocation struct {
	Tiploc              string `json:"tiploc"`
	CRS                 string `json:"crs"`
	Description         string `json:"description"`
	GbttBookedArrival   string `json:"gbttBookedArrival"`
	GbttBookedDeparture string `json:"gbttBookedDeparture"`
	RealtimeArrival     string `json:"realtimeArrival"`
	RealtimeDeparture   string `json:"realtimeDeparture"`
	Platform            string `json:"platform"`
	DisplayAs           string `json:"displayAs"`
}
