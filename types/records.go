package types

import (
	"time"

	"github.com/angas/imbalance-go/types/maybe"
)

// PriceRecord is one row of the open-data price table (table A).
type PriceRecord struct {
	Timestamp time.Time
	Price     maybe.Maybe[float64]
}

type PriceTable struct {
	Records []PriceRecord
}

func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// IntervalRow is a raw row scraped from the price page (table B), e.g. {"08:00 - 08:15", "12,5"}.
type IntervalRow struct {
	Label    string
	RawPrice string
}

type IntervalTable struct {
	Rows []IntervalRow
}

func (t *IntervalTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// IntervalPrice is an IntervalRow anchored to a reference date.
// Start and End are None when the label could not be parsed.
type IntervalPrice struct {
	Label    string
	RawPrice string
	Start    maybe.Maybe[time.Time]
	End      maybe.Maybe[time.Time]
	Price    maybe.Maybe[float64]
}

// Hour is the hour of day of the interval start.
func (p IntervalPrice) Hour() maybe.Maybe[int] {
	return maybe.Map(p.Start, func(t time.Time) int { return t.Hour() })
}

type NormalizedIntervalTable struct {
	Records []IntervalPrice
}

func (t *NormalizedIntervalTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Prices returns the interval prices in table order, nulls included.
func (t *NormalizedIntervalTable) Prices() []maybe.Maybe[float64] {
	if t == nil {
		return nil
	}
	prices := make([]maybe.Maybe[float64], len(t.Records))
	for i, r := range t.Records {
		prices[i] = r.Price
	}
	return prices
}

type WeatherRecord struct {
	Timestamp   time.Time
	Temperature maybe.Maybe[float64] // °C at 2 m
	Humidity    maybe.Maybe[float64] // relative humidity in % at 2 m
	WindSpeed   maybe.Maybe[float64] // km/h at 10 m
}

type WeatherTable struct {
	Records []WeatherRecord
}

func (t *WeatherTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// CombinedRecord is a row of table A left joined with weather and table B.
type CombinedRecord struct {
	Timestamp time.Time
	Price     maybe.Maybe[float64]
	Weather   maybe.Maybe[WeatherRecord]
	Interval  maybe.Maybe[IntervalPrice]
}

type CombinedTable struct {
	Records []CombinedRecord
	// Number of left rows that matched more than one right row.
	DuplicateMatches int
}

func (t *CombinedTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}
