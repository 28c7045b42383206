package merge

import (
	"errors"
	"testing"
	"time"

	"github.com/angas/imbalance-go/types"
	"github.com/angas/imbalance-go/types/maybe"
)

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)
)

func TestCombineMissingWeather(t *testing.T) {
	prices := &types.PriceTable{Records: []types.PriceRecord{
		{Timestamp: t0, Price: maybe.Some(10.0)},
		{Timestamp: t1, Price: maybe.Some(20.0)},
	}}
	weather := &types.WeatherTable{Records: []types.WeatherRecord{
		{Timestamp: t0, Temperature: maybe.Some(1.5), Humidity: maybe.Some(80.0), WindSpeed: maybe.Some(3.0)},
	}}

	combined, err := Combine(prices, weather, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if combined.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", combined.Len())
	}

	first := combined.Records[0]
	if !first.Timestamp.Equal(t0) || !first.Weather.IsValid() || first.Weather.Value().Temperature.Value() != 1.5 {
		t.Errorf("expected T0 joined with weather, got %+v", first)
	}
	second := combined.Records[1]
	if !second.Timestamp.Equal(t1) || second.Weather.IsValid() {
		t.Errorf("expected T1 without weather, got %+v", second)
	}
	if second.Price.Value() != 20 {
		t.Errorf("expected price 20, got %s", second.Price)
	}
}

func TestCombineWithIntervals(t *testing.T) {
	brussels := time.FixedZone("CET", 3600)
	prices := &types.PriceTable{Records: []types.PriceRecord{
		{Timestamp: t1, Price: maybe.Some(20.0)},
		{Timestamp: t0, Price: maybe.None[float64]()},
	}}
	intervals := &types.NormalizedIntervalTable{Records: []types.IntervalPrice{
		// Same instant as t0, different location.
		{Label: "01:00 - 01:15", Start: maybe.Some(time.Date(2024, 1, 1, 1, 0, 0, 0, brussels)), Price: maybe.Some(-5.0)},
		{Label: "bad", Price: maybe.Some(99.0)},
	}}

	combined, err := Combine(prices, &types.WeatherTable{}, intervals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if combined.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", combined.Len())
	}
	if combined.Records[0].Interval.IsValid() {
		t.Errorf("expected no interval for T1")
	}
	iv := combined.Records[1].Interval
	if !iv.IsValid() || iv.Value().Price.Value() != -5 {
		t.Errorf("expected T0 joined with interval price -5, got %s", iv)
	}
	if !combined.Records[1].Timestamp.Equal(t0) {
		t.Errorf("expected left table order to be kept")
	}
}

func TestCombineExactKeysOnly(t *testing.T) {
	prices := &types.PriceTable{Records: []types.PriceRecord{
		{Timestamp: t0.Add(time.Second), Price: maybe.Some(1.0)},
	}}
	weather := &types.WeatherTable{Records: []types.WeatherRecord{{Timestamp: t0}}}

	combined, err := Combine(prices, weather, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if combined.Records[0].Weather.IsValid() {
		t.Errorf("expected no match one second off")
	}
}

func TestCombineFarApartInstants(t *testing.T) {
	// 2^64 ns apart, equal when truncated to int64 nanoseconds.
	early := time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2084, 7, 20, 23, 34, 33, 709551616, time.UTC)
	if early.UnixNano() != late.UnixNano() {
		t.Fatalf("expected wrapped nanoseconds to be equal")
	}

	prices := &types.PriceTable{Records: []types.PriceRecord{{Timestamp: early, Price: maybe.Some(1.0)}}}
	weather := &types.WeatherTable{Records: []types.WeatherRecord{{Timestamp: late, Temperature: maybe.Some(20.0)}}}

	combined, err := Combine(prices, weather, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if combined.Len() != 1 || combined.Records[0].Weather.IsValid() {
		t.Errorf("expected no match across 2^64 ns, got %+v", combined.Records)
	}
}

func TestCombineDuplicateKeys(t *testing.T) {
	prices := &types.PriceTable{Records: []types.PriceRecord{
		{Timestamp: t0, Price: maybe.Some(1.0)},
	}}
	weather := &types.WeatherTable{Records: []types.WeatherRecord{
		{Timestamp: t0, Temperature: maybe.Some(1.0)},
		{Timestamp: t0, Temperature: maybe.Some(2.0)},
	}}

	combined, err := Combine(prices, weather, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if combined.Len() != 2 {
		t.Fatalf("expected one row per match, got %d", combined.Len())
	}
	if combined.DuplicateMatches != 1 {
		t.Errorf("expected 1 duplicate match, got %d", combined.DuplicateMatches)
	}
	if combined.Records[0].Weather.Value().Temperature.Value() != 1 || combined.Records[1].Weather.Value().Temperature.Value() != 2 {
		t.Errorf("expected matches in weather table order")
	}
}

func TestCombineMissingJoinKey(t *testing.T) {
	if _, err := Combine(nil, &types.WeatherTable{}, nil); !errors.Is(err, types.ErrMissingJoinKey) {
		t.Errorf("expected ErrMissingJoinKey, got %v", err)
	}
}
