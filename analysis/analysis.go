package analysis

import (
	"errors"
	"slices"

	"github.com/angas/imbalance-go/slice"
	"github.com/angas/imbalance-go/types"
	"github.com/angas/imbalance-go/types/maybe"
)

// ErrNoValidPrices means no statistic can be computed, there is no non-null price.
var ErrNoValidPrices = errors.New("no valid prices")

type HourlyMean struct {
	Hour  int     `json:"hour"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// HourlyMeans averages the non-null prices per hour of day of the interval
// start. Hours without any such price are left out.
func HourlyMeans(records []types.IntervalPrice) []HourlyMean {
	var sums [24]float64
	var counts [24]int

	for _, r := range records {
		hour := r.Hour()
		if !hour.IsValid() || !r.Price.IsValid() {
			continue
		}
		sums[hour.Value()] += r.Price.Value()
		counts[hour.Value()]++
	}

	means := make([]HourlyMean, 0, 24)
	for h := range 24 {
		if counts[h] == 0 {
			continue
		}
		means = append(means, HourlyMean{Hour: h, Mean: sums[h] / float64(counts[h]), Count: counts[h]})
	}
	return means
}

// NonNull drops the null prices, keeping order.
func NonNull(prices []maybe.Maybe[float64]) []float64 {
	valid := slice.Filter(prices, func(p maybe.Maybe[float64]) bool { return p.IsValid() })
	return slice.Map(valid, func(p maybe.Maybe[float64]) float64 { return p.Value() })
}

// LowPriceFrequency is the share of non-null prices below zero.
func LowPriceFrequency(prices []maybe.Maybe[float64]) (float64, error) {
	valid := NonNull(prices)
	if len(valid) == 0 {
		return 0, ErrNoValidPrices
	}
	negative := slice.Count(valid, func(p float64) bool { return p < 0 })
	return float64(negative) / float64(len(valid)), nil
}

type Summary struct {
	Records           int          `json:"records"`
	ValidPrices       int          `json:"valid_prices"`
	Min               float64      `json:"min"`
	Max               float64      `json:"max"`
	Mean              float64      `json:"mean"`
	LowPriceFrequency float64      `json:"low_price_frequency"`
	HourlyMeans       []HourlyMean `json:"hourly_means"`
}

// Summarize returns ErrNoValidPrices when the table holds no non-null price,
// callers skip aggregation in that case.
func Summarize(table *types.NormalizedIntervalTable) (Summary, error) {
	prices := table.Prices()
	valid := NonNull(prices)
	if len(valid) == 0 {
		return Summary{}, ErrNoValidPrices
	}

	freq, err := LowPriceFrequency(prices)
	if err != nil {
		return Summary{}, err
	}

	sum := 0.0
	for _, p := range valid {
		sum += p
	}

	return Summary{
		Records:           table.Len(),
		ValidPrices:       len(valid),
		Min:               slices.Min(valid),
		Max:               slices.Max(valid),
		Mean:              sum / float64(len(valid)),
		LowPriceFrequency: freq,
		HourlyMeans:       HourlyMeans(table.Records),
	}, nil
}
