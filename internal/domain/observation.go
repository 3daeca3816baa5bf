package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field is a KMA value decoded from either a JSON string or a JSON number.
// null and missing values decode to the empty string.
type Field string

// UnmarshalJSON accepts "12.5", 12.5 and null.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = Field(n.String())
	return nil
}

// RawObservation is one station-day item of the ASOS daily dataset.
// Only the columns used for normalization are decoded.
type RawObservation struct {
	StationID   Field `json:"stnId"`
	StationName Field `json:"stnNm"`
	Date        Field `json:"tm"`
	AvgTemp     Field `json:"avgTa"`
	MaxTemp     Field `json:"maxTa"`
	MinTemp     Field `json:"minTa"`
	Precip      Field `json:"sumRn"`
	Humidity    Field `json:"avgRhm"`
	CloudCover  Field `json:"avgTca"`
	Phenomena   Field `json:"iscs"`
}

// PrecipType is the form of the day's precipitation.
type PrecipType string

const (
	PrecipNone  PrecipType = "None"
	PrecipRain  PrecipType = "Rain"
	PrecipSnow  PrecipType = "Snow"
	PrecipSleet PrecipType = "Sleet"
)

// PrimaryTag is the single headline sky/weather category for a day.
type PrimaryTag string

const (
	TagSunny        PrimaryTag = "Sunny"
	TagPartlyCloudy PrimaryTag = "Partly Cloudy"
	TagCloudy       PrimaryTag = "Cloudy"
	TagRainy        PrimaryTag = "Rainy"
	TagSnowy        PrimaryTag = "Snowy"
)

// NormalizedRecord is the persisted unit: one row per station-day.
// Measurements are kept as the strings the service sent so the sheet stores
// exactly what was observed.
type NormalizedRecord struct {
	Date            string     `json:"date"`
	StationID       string     `json:"station_id"`
	StationName     string     `json:"station_name"`
	AvgTemp         string     `json:"avg_temp"`
	MaxTemp         string     `json:"max_temp"`
	MinTemp         string     `json:"min_temp"`
	Precipitation   string     `json:"precipitation"`
	Humidity        string     `json:"humidity"`
	CloudCover      string     `json:"cloud_cover"`
	DiscomfortIndex Number     `json:"discomfort_index"`
	PrecipType      PrecipType `json:"precip_type"`
	PrimaryTag      PrimaryTag `json:"primary_tag"`
	SecondaryTags   string     `json:"secondary_tags"`
	Text            string     `json:"text"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TimestampLayout is the wall-clock format of the UpdatedAt column.
const TimestampLayout = "2006-01-02 15:04:05"

// Columns names the fields of Row, in order. The sheet itself carries no
// managed header; this is used by CSV exports.
var Columns = []string{
	"date", "station_id", "station_name",
	"avg_temp", "max_temp", "min_temp",
	"precipitation", "humidity", "cloud_cover",
	"discomfort_index", "precip_type", "primary_tag",
	"secondary_tags", "text", "updated_at",
}

// Row returns the record in sheet column order. The discomfort index is a
// float64 when valid and an empty string otherwise.
func (r NormalizedRecord) Row() []any {
	var di any = ""
	if r.DiscomfortIndex.Valid {
		di = r.DiscomfortIndex.Value
	}
	return []any{
		r.Date,
		r.StationID,
		r.StationName,
		r.AvgTemp,
		r.MaxTemp,
		r.MinTemp,
		r.Precipitation,
		r.Humidity,
		r.CloudCover,
		di,
		string(r.PrecipType),
		string(r.PrimaryTag),
		r.SecondaryTags,
		r.Text,
		r.UpdatedAt.Format(TimestampLayout),
	}
}

// Strings is Row with every column rendered as text.
func (r NormalizedRecord) Strings() []string {
	return []string{
		r.Date,
		r.StationID,
		r.StationName,
		r.AvgTemp,
		r.MaxTemp,
		r.MinTemp,
		r.Precipitation,
		r.Humidity,
		r.CloudCover,
		r.DiscomfortIndex.String(),
		string(r.PrecipType),
		string(r.PrimaryTag),
		r.SecondaryTags,
		r.Text,
		r.UpdatedAt.Format(TimestampLayout),
	}
}
