package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angas/imbalance-go/convert"
	"github.com/angas/imbalance-go/types"
	"github.com/angas/imbalance-go/types/maybe"
)

const BASE_URL = "https://archive-api.open-meteo.com/v1/archive"

var hourlyVariables = []string{"temperature_2m", "relative_humidity_2m", "wind_speed_10m"}

// Request is the station and period a weather series is fetched for.
type Request struct {
	Latitude  float64
	Longitude float64
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
}

// Hourly is the "hourly" object of an Open-Meteo response, parallel arrays.
type Hourly struct {
	Time               []string               `json:"time"`
	Temperature2m      []maybe.Maybe[float64] `json:"temperature_2m"`
	RelativeHumidity2m []maybe.Maybe[float64] `json:"relative_humidity_2m"`
	WindSpeed10m       []maybe.Maybe[float64] `json:"wind_speed_10m"`
}

type response struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Hourly    Hourly  `json:"hourly"`
}

type OpenMeteo struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	request Request
	loc     *time.Location
}

func New(client *http.Client, baseURL string, request Request, loc *time.Location) *OpenMeteo {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = BASE_URL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &OpenMeteo{
		logger:  slog.Default().With("module", "openmeteo"),
		client:  client,
		baseURL: baseURL,
		request: request,
		loc:     loc,
	}
}

func (o *OpenMeteo) GetWeatherTable(ctx context.Context) (*types.WeatherTable, error) {
	hourly, err := o.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(hourly, o.loc)
}

func (o *OpenMeteo) Fetch(ctx context.Context) (Hourly, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%0.4f", o.request.Latitude))
	values.Set("longitude", fmt.Sprintf("%0.4f", o.request.Longitude))
	values.Set("start_date", o.request.StartDate)
	values.Set("end_date", o.request.EndDate)
	values.Set("hourly", strings.Join(hourlyVariables, ","))
	values.Set("timezone", o.loc.String())

	u := fmt.Sprintf("%s?%s", o.baseURL, values.Encode())
	o.logger.Info("fetching weather observations...", slog.String("url", u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Hourly{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return Hourly{}, fmt.Errorf("failed to fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Hourly{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Hourly{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return body.Hourly, nil
}

// Parse zips the parallel hourly arrays into a table keyed by timestamp.
func Parse(hourly Hourly, loc *time.Location) (*types.WeatherTable, error) {
	n := len(hourly.Time)
	if len(hourly.Temperature2m) != n || len(hourly.RelativeHumidity2m) != n || len(hourly.WindSpeed10m) != n {
		return nil, fmt.Errorf("%w: time=%d temperature=%d humidity=%d wind_speed=%d",
			types.ErrShapeMismatch,
			n,
			len(hourly.Temperature2m),
			len(hourly.RelativeHumidity2m),
			len(hourly.WindSpeed10m))
	}

	table := &types.WeatherTable{Records: make([]types.WeatherRecord, n)}
	for i := range n {
		ts, err := convert.ParseTime(hourly.Time[i], loc)
		if err != nil {
			return nil, fmt.Errorf("parsing hourly time %d: %w", i, err)
		}
		table.Records[i] = types.WeatherRecord{
			Timestamp:   ts,
			Temperature: hourly.Temperature2m[i],
			Humidity:    hourly.RelativeHumidity2m[i],
			WindSpeed:   hourly.WindSpeed10m[i],
		}
	}

	return table, nil
}
