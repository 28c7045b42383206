package normalize

import (
	"log/slog"
	"time"

	"github.com/angas/imbalance-go/convert"
	"github.com/angas/imbalance-go/hours"
	"github.com/angas/imbalance-go/types"
	"github.com/angas/imbalance-go/types/maybe"
)

type Normalizer struct {
	logger *slog.Logger
	ref    hours.Date
}

// New anchors interval labels to ref, labels carry no date of their own.
func New(logger *slog.Logger, ref hours.Date) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger.With("module", "normalize"), ref: ref}
}

// IntervalTable converts raw page rows into interval prices. Bad labels and
// prices only null the affected fields, the row itself is kept.
func (n *Normalizer) IntervalTable(raw *types.IntervalTable) *types.NormalizedIntervalTable {
	if raw == nil {
		return nil
	}

	table := &types.NormalizedIntervalTable{Records: make([]types.IntervalPrice, len(raw.Rows))}
	malformed, nullPrices := 0, 0
	for i, row := range raw.Rows {
		rec := Row(row, n.ref)
		if !rec.Start.IsValid() {
			malformed++
			n.logger.Debug("malformed interval label", slog.Int("row", i), slog.String("label", row.Label))
		}
		if !rec.Price.IsValid() {
			nullPrices++
		}
		table.Records[i] = rec
	}

	if malformed > 0 {
		n.logger.Warn("interval labels could not be parsed",
			slog.Int("rows", malformed),
			slog.String("referenceDate", n.ref.String()))
	}
	if nullPrices > 0 {
		n.logger.Info("prices coerced to null", slog.Int("rows", nullPrices))
	}

	return table
}

// Row normalizes a single row.
func Row(row types.IntervalRow, ref hours.Date) types.IntervalPrice {
	rec := types.IntervalPrice{
		Label:    row.Label,
		RawPrice: row.RawPrice,
		Start:    maybe.None[time.Time](),
		End:      maybe.None[time.Time](),
		Price:    convert.ParseDecimalComma(row.RawPrice),
	}

	if iv, err := hours.ParseInterval(row.Label, ref); err == nil {
		rec.Start = maybe.Some(iv.Start)
		rec.End = maybe.Some(iv.End)
	}

	return rec
}
