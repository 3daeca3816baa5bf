package domain

import (
	"regexp"
	"strings"
	"time"
)

// Phenomenon keywords of the iscs summary.
const (
	keywordRain    = "비"
	keywordSnow    = "눈"
	keywordShower  = "소나기"
	keywordHail    = "우박"
	keywordMist    = "박무"
	keywordHaze    = "연무"
	keywordDust    = "황사"
	keywordFog     = "안개"
	keywordDrizzle = "이슬비"
	keywordSleet   = "진눈깨비"
)

// tagVocabulary lists the keywords reported as secondary tags, in output order.
var tagVocabulary = []string{
	keywordRain,
	keywordSnow,
	keywordShower,
	keywordHail,
	keywordMist,
	keywordHaze,
	keywordDust,
	keywordFog,
	keywordDrizzle,
}

// intensityRe matches KMA intensity codes such as "강도2".
var intensityRe = regexp.MustCompile(`강도\d+`)

const (
	defaultPrecipitation = "0.0"
	cloudyThreshold      = 6.0
	partlyCloudyThresh   = 3.0
)

// Options selects between the two normalization variants.
type Options struct {
	// ApplyTextCleaning strips braces and intensity codes from the stored
	// phenomenon text. When false the raw text is stored unchanged.
	ApplyTextCleaning bool
	// Location is the zone of UpdatedAt. Nil means time.Local.
	Location *time.Location
}

// DefaultOptions returns the canonical variant with text cleaning enabled.
func DefaultOptions() Options {
	return Options{ApplyTextCleaning: true}
}

// Normalize converts one raw observation into one record. Categorical fields
// are derived from the raw phenomenon text regardless of cleaning.
func Normalize(raw RawObservation, opts Options) NormalizedRecord {
	text := string(raw.Phenomena)

	precipitation := strings.TrimSpace(string(raw.Precip))
	if precipitation == "" {
		precipitation = defaultPrecipitation
	}
	precip := ParseNumber(precipitation)
	cloud := parseCloudCover(string(raw.CloudCover))

	precipType := ClassifyPrecipitation(text, precip)

	stored := text
	if opts.ApplyTextCleaning {
		stored = CleanText(text)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	return NormalizedRecord{
		Date:            normalizeDate(string(raw.Date)),
		StationID:       string(raw.StationID),
		StationName:     string(raw.StationName),
		AvgTemp:         string(raw.AvgTemp),
		MaxTemp:         string(raw.MaxTemp),
		MinTemp:         string(raw.MinTemp),
		Precipitation:   precipitation,
		Humidity:        string(raw.Humidity),
		CloudCover:      string(raw.CloudCover),
		DiscomfortIndex: DiscomfortIndex(string(raw.AvgTemp), string(raw.Humidity)),
		PrecipType:      precipType,
		PrimaryTag:      ClassifyPrimary(precip, cloud, precipType),
		SecondaryTags:   ExtractTags(text),
		Text:            stored,
		UpdatedAt:       clock.Now().In(loc).Truncate(time.Second),
	}
}

// DiscomfortIndex computes the temperature-humidity index from a temperature
// in °C and a relative humidity in percent, rounded to one decimal.
// The result is invalid when either input is not numeric.
func DiscomfortIndex(temp, humidity string) Number {
	t := ParseNumber(temp)
	rh := ParseNumber(humidity)
	if !t.Valid || !rh.Valid {
		return Number{}
	}
	f := float64(1.8 * t.Value)
	damp := float64(0.55 * (1 - rh.Value/100) * (f - 26))
	return Number{Value: roundTo1(f - damp + 32), Valid: true}
}

// ExtractTags returns the vocabulary keywords found in text, joined by ", ".
func ExtractTags(text string) string {
	if text == "" {
		return ""
	}
	found := make([]string, 0, len(tagVocabulary))
	for _, word := range tagVocabulary {
		if strings.Contains(text, word) {
			found = append(found, word)
		}
	}
	return strings.Join(found, ", ")
}

// CleanText removes braces and intensity codes and collapses doubled hyphens.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.NewReplacer("{", "", "}", "").Replace(text)
	text = intensityRe.ReplaceAllString(text, "")
	for strings.Contains(text, "--") {
		text = strings.ReplaceAll(text, "--", "-")
	}
	return strings.TrimSpace(text)
}

// ClassifyPrecipitation decides the precipitation type. Keywords are checked
// before the measured amount, rain before snow before sleet.
func ClassifyPrecipitation(text string, precip Number) PrecipType {
	switch {
	case strings.Contains(text, keywordRain) || strings.Contains(text, keywordShower):
		return PrecipRain
	case strings.Contains(text, keywordSnow):
		return PrecipSnow
	case strings.Contains(text, keywordSleet):
		return PrecipSleet
	case precip.Valid && precip.Value > 0:
		return PrecipRain
	default:
		return PrecipNone
	}
}

// ClassifyPrimary picks the headline tag. If either precipitation or cloud
// cover failed to parse the default Sunny is kept.
func ClassifyPrimary(precip, cloud Number, precipType PrecipType) PrimaryTag {
	if !precip.Valid || !cloud.Valid {
		return TagSunny
	}
	switch {
	case precip.Value > 0 || precipType != PrecipNone:
		if precipType == PrecipRain || precipType == PrecipSleet {
			return TagRainy
		}
		return TagSnowy
	case cloud.Value >= cloudyThreshold:
		return TagCloudy
	case cloud.Value >= partlyCloudyThresh:
		return TagPartlyCloudy
	default:
		return TagSunny
	}
}

// parseCloudCover treats an absent value as zero cover.
func parseCloudCover(s string) Number {
	if strings.TrimSpace(s) == "" {
		return Number{Value: 0, Valid: true}
	}
	return ParseNumber(s)
}

// normalizeDate renders tm as YYYY-MM-DD. Unrecognised input is passed through.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return s
}
