package merge

import (
	"time"

	"github.com/angas/imbalance-go/types"
	"github.com/angas/imbalance-go/types/maybe"
)

// key compares instants exactly, independent of location. Seconds and
// nanoseconds are kept apart so dates outside the int64 nanosecond range
// cannot collide.
type key struct {
	sec  int64
	nsec int
}

func keyOf(t time.Time) key {
	return key{sec: t.Unix(), nsec: t.Nanosecond()}
}

// Combine left joins the price table with the weather table on timestamp and
// then with the interval table on interval start. Keys must be equal
// instants, there is no tolerance window. A left row matching several right
// rows yields one combined row per match, in right table order.
// A nil weather or interval table joins as empty.
func Combine(prices *types.PriceTable, weather *types.WeatherTable, intervals *types.NormalizedIntervalTable) (*types.CombinedTable, error) {
	if prices == nil {
		return nil, types.ErrMissingJoinKey
	}

	weatherIdx := indexWeather(weather)
	intervalIdx := indexIntervals(intervals)

	result := &types.CombinedTable{Records: make([]types.CombinedRecord, 0, len(prices.Records))}
	for _, p := range prices.Records {
		k := keyOf(p.Timestamp)
		ws := weatherIdx[k]
		ivs := intervalIdx[k]
		if len(ws) > 1 || len(ivs) > 1 {
			result.DuplicateMatches++
		}

		for _, w := range optional(ws) {
			for _, iv := range optional(ivs) {
				result.Records = append(result.Records, types.CombinedRecord{
					Timestamp: p.Timestamp,
					Price:     p.Price,
					Weather:   w,
					Interval:  iv,
				})
			}
		}
	}

	return result, nil
}

// optional turns the matches of a left outer join into the values to emit,
// a single None when nothing matched.
func optional[T any](matches []T) []maybe.Maybe[T] {
	if len(matches) == 0 {
		return []maybe.Maybe[T]{maybe.None[T]()}
	}
	result := make([]maybe.Maybe[T], len(matches))
	for i, m := range matches {
		result[i] = maybe.Some(m)
	}
	return result
}

func indexWeather(t *types.WeatherTable) map[key][]types.WeatherRecord {
	idx := make(map[key][]types.WeatherRecord)
	if t == nil {
		return idx
	}
	for _, r := range t.Records {
		k := keyOf(r.Timestamp)
		idx[k] = append(idx[k], r)
	}
	return idx
}

func indexIntervals(t *types.NormalizedIntervalTable) map[key][]types.IntervalPrice {
	idx := make(map[key][]types.IntervalPrice)
	if t == nil {
		return idx
	}
	for _, r := range t.Records {
		if !r.Start.IsValid() {
			continue
		}
		k := keyOf(r.Start.Value())
		idx[k] = append(idx[k], r)
	}
	return idx
}
