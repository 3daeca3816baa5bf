package kma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/OIYJJ/weather-data-automation/internal/config"
	"github.com/OIYJJ/weather-data-automation/internal/domain"
)

const (
	resultOK   = "00"
	dayLayout  = "20060102"
	dayPageMax = 10
)

// APIError is a non-success result code reported in the response header.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kma API error %s: %s", e.Code, e.Message)
}

// Client fetches ASOS daily observations for one station.
// It implements pipeline.Fetcher.
type Client struct {
	apiKey     string
	stationID  int
	pageSize   int
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a KMA ASOS client from the job configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		apiKey:    cfg.APIKey,
		stationID: cfg.StationID,
		pageSize:  cfg.PageSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.APIURL,
		logger:  logger,
	}
}

// FetchRange returns every observation between start and end inclusive in a
// single request. The page size must cover the whole range.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time) ([]domain.RawObservation, error) {
	return c.fetch(ctx, start, end, c.pageSize)
}

// FetchDay returns the observation for day. The bool is false when the
// service has no record for that day.
func (c *Client) FetchDay(ctx context.Context, day time.Time) (domain.RawObservation, bool, error) {
	items, err := c.fetch(ctx, day, day, dayPageMax)
	if err != nil {
		return domain.RawObservation{}, false, err
	}
	if len(items) == 0 {
		return domain.RawObservation{}, false, nil
	}
	return items[0], true, nil
}

func (c *Client) fetch(ctx context.Context, start, end time.Time, rows int) ([]domain.RawObservation, error) {
	params := url.Values{
		"serviceKey": {c.apiKey},
		"pageNo":     {"1"},
		"numOfRows":  {strconv.Itoa(rows)},
		"dataType":   {"JSON"},
		"dataCd":     {"ASOS"},
		"dateCd":     {"DAY"},
		"startDt":    {start.Format(dayLayout)},
		"endDt":      {end.Format(dayLayout)},
		"stnIds":     {strconv.Itoa(c.stationID)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.logger.Debug("kma request",
		"start", params.Get("startDt"),
		"end", params.Get("endDt"),
		"station", c.stationID,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kma request %s~%s: %w", params.Get("startDt"), params.Get("endDt"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("kma API error: status %d: %s", resp.StatusCode, body)
	}

	return DecodeResponse(resp.Body)
}

// DecodeResponse parses a getWthrDataList JSON document.
func DecodeResponse(r io.Reader) ([]domain.RawObservation, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Response.Header.ResultCode == "" {
		return nil, fmt.Errorf("decode response: missing response header")
	}
	if env.Response.Header.ResultCode != resultOK {
		return nil, &APIError{Code: env.Response.Header.ResultCode, Message: env.Response.Header.ResultMsg}
	}
	return decodeItems(env.Response.Body.Items)
}

// KMA API response types.

type envelope struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			// Items is an object on success and an empty string when the
			// range has no data.
			Items json.RawMessage `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

func decodeItems(raw json.RawMessage) ([]domain.RawObservation, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || data[0] != '{' {
		return nil, nil
	}
	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	item := bytes.TrimSpace(wrapper.Item)
	if len(item) == 0 || bytes.Equal(item, []byte("null")) {
		return nil, nil
	}
	// A lone observation is occasionally sent as an object instead of a list.
	if item[0] == '{' {
		var obs domain.RawObservation
		if err := json.Unmarshal(item, &obs); err != nil {
			return nil, fmt.Errorf("decode item: %w", err)
		}
		return []domain.RawObservation{obs}, nil
	}
	var obs []domain.RawObservation
	if err := json.Unmarshal(item, &obs); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return obs, nil
}
