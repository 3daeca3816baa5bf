// Package domain models KMA ASOS daily weather observations and the rules that
// turn one observation into one spreadsheet row.
//
// # Data Source
//
// Observations come from the Korea Meteorological Administration (KMA) ASOS
// daily dataset published on data.go.kr (AsosDalyInfoService/getWthrDataList).
// One item is returned per station-day. The service encodes every value as a
// JSON string and leaves unmeasured values empty.
//
// # KMA Data Conventions
//
// Fields used here:
//
//	tm      observation date, "2024-06-01"
//	stnId   station number, "108" (Seoul)
//	avgTa   mean temperature (°C); maxTa / minTa daily extremes
//	sumRn   daily precipitation (mm), empty on dry days
//	avgRhm  mean relative humidity (%)
//	avgTca  mean total cloud cover, 0-10 tenths
//	iscs    phenomenon summary
//
// Phenomenon summary format:
//
//	"{비}0010-0520. {박무}0600-0930. {소나기}강도2 1400-1510."
//	Each phenomenon is a bracketed Korean keyword followed by optional intensity
//	codes ("강도" + level) and HHMM-HHMM time ranges. Continuous events are
//	sometimes written with a doubled hyphen ("2300--").
//
// Phenomenon vocabulary recognised by [ExtractTags]:
//
//	비 rain | 눈 snow | 소나기 shower | 우박 hail | 박무 mist
//	연무 haze | 황사 yellow dust | 안개 fog | 이슬비 drizzle
//
// Keywords are matched as substrings of the raw summary, so "이슬비" and
// "진눈깨비" (sleet) also contain "비".
//
// # Classification
//
// Precipitation type is decided in a fixed order, first match wins:
// rain or shower keyword, snow keyword, sleet keyword, then measured
// precipitation above zero. The primary tag follows the precipitation type
// when there is any precipitation and otherwise falls back to cloud cover:
//
//	cloud >= 6.0 Cloudy | >= 3.0 Partly Cloudy | else Sunny
//
// Sleet is always shown as Rainy.
//
// # Discomfort Index
//
//	DI = 1.8t - 0.55(1 - RH/100)(1.8t - 26) + 32
//
// rounded to one decimal. See [DiscomfortIndex].
package domain
