package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

const (
	defaultAPIURL         = "https://apis.data.go.kr/1360000/AsosDalyInfoService/getWthrDataList"
	defaultSpreadsheetURL = "https://docs.google.com/spreadsheets/d/18esEBrgl-JmkwkxTeOI_7qTFmWgIKhjDoTa9wuF6o9s/edit"
	defaultSheetName      = "7. weather"
	dateLayout            = "2006-01-02"
)

// Sink kinds accepted by SINK.
const (
	SinkSheets = "sheets"
	SinkXLSX   = "xlsx"
	SinkKafka  = "kafka"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	APIKey    string
	APIURL    string
	StationID int
	PageSize  int
	Timeout   time.Duration

	Sink string

	// Google Sheets destination. The credential is validated when the sink is opened.
	SheetCredentials string
	SpreadsheetURL   string
	SheetName        string

	XLSXPath string

	KafkaBrokers []string
	KafkaTopic   string

	TextCleaning bool
	Location     *time.Location

	// Backfill range and chunking.
	BackfillStart time.Time
	BackfillEnd   time.Time
	BackfillChunk string
	BackfillPause time.Duration

	LogLevel  string
	LogFormat string

	PushgatewayURL string
}

// Load reads configuration from the environment (and an optional .env file),
// applying defaults where unset. A missing API key is an error.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	apiKey := strings.TrimSpace(os.Getenv("KMA_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("KMA_API_KEY is required")
	}

	stationID, err := parsePositiveInt("KMA_STATION_ID", "108")
	if err != nil {
		return nil, err
	}
	pageSize, err := parsePositiveInt("KMA_PAGE_SIZE", "400")
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration("KMA_TIMEOUT", "30s", false)
	if err != nil {
		return nil, err
	}
	pause, err := parseDuration("BACKFILL_PAUSE", "2s", true)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("TIMEZONE", "Asia/Seoul"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	start, err := parseDate("BACKFILL_START", "2016-01-01", loc)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("BACKFILL_END", "2026-02-05", loc)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, errors.New("BACKFILL_END must not be before BACKFILL_START")
	}

	cleaning, err := strconv.ParseBool(sharedcfg.EnvOrDefault("TEXT_CLEANING", "true"))
	if err != nil {
		return nil, errors.New("invalid TEXT_CLEANING")
	}

	cfg := &Config{
		APIKey:    apiKey,
		APIURL:    sharedcfg.EnvOrDefault("KMA_API_URL", defaultAPIURL),
		StationID: stationID,
		PageSize:  pageSize,
		Timeout:   timeout,

		Sink: strings.ToLower(sharedcfg.EnvOrDefault("SINK", SinkSheets)),

		SheetCredentials: os.Getenv("GOOGLE_SHEET_KEY"),
		SpreadsheetURL:   sharedcfg.EnvOrDefault("SPREADSHEET_URL", defaultSpreadsheetURL),
		SheetName:        sharedcfg.EnvOrDefault("SHEET_NAME", defaultSheetName),

		XLSXPath: sharedcfg.EnvOrDefault("XLSX_PATH", "weather.xlsx"),

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "kma-daily-weather"),

		TextCleaning: cleaning,
		Location:     loc,

		BackfillStart: start,
		BackfillEnd:   end,
		BackfillChunk: strings.ToLower(sharedcfg.EnvOrDefault("BACKFILL_CHUNK", "year")),
		BackfillPause: pause,

		LogLevel:  sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}

	switch cfg.Sink {
	case SinkSheets, SinkXLSX:
	case SinkKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required for the kafka sink")
		}
	default:
		return nil, fmt.Errorf("invalid SINK %q", cfg.Sink)
	}

	switch cfg.BackfillChunk {
	case "year", "month", "day":
	default:
		return nil, fmt.Errorf("invalid BACKFILL_CHUNK %q", cfg.BackfillChunk)
	}

	return cfg, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseDate(key, def string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, sharedcfg.EnvOrDefault(key, def), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
