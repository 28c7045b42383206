package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/angas/imbalance-go/convert"
	"github.com/angas/imbalance-go/types"
	"github.com/angas/imbalance-go/types/maybe"
)

const (
	PriceFile              = "x_company_imbalance_price.csv"
	IntervalRawFile        = "y_company_imbalance_prices.csv"
	IntervalNormalizedFile = "y_company_imbalance_prices_normalized.csv"
	WeatherFile            = "weather_data.csv"
	CombinedFile           = "combined_data.csv"
)

var (
	priceHeader              = []string{"imbalance_price", "datetime"}
	intervalRawHeader        = []string{"Timestamp", "Imbalance Price"}
	intervalNormalizedHeader = []string{"Timestamp", "Imbalance Price", "DateTime Start", "DateTime End", "Hour"}
	weatherHeader            = []string{"Timestamp", "Temperature", "Humidity", "Wind Speed"}
	combinedHeader           = []string{"datetime", "imbalance_price", "Temperature", "Humidity", "Wind Speed", "Timestamp", "Imbalance Price", "DateTime End", "Hour"}
)

// Exporter writes tables as comma separated files with a header row into a
// single directory. Existing files are overwritten.
type Exporter struct {
	dir string
}

func New(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Exporter{dir: dir}, nil
}

func (e *Exporter) Path(name string) string {
	return filepath.Join(e.dir, name)
}

// Remove deletes the named files left by an earlier run and returns the paths
// that existed.
func (e *Exporter) Remove(names ...string) ([]string, error) {
	var removed []string
	var errs []error
	for _, name := range names {
		path := e.Path(name)
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = append(removed, path)
		case !errors.Is(err, fs.ErrNotExist):
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
	}
	return removed, errors.Join(errs...)
}

func (e *Exporter) WritePriceTable(t *types.PriceTable) (string, error) {
	rows := make([][]string, len(t.Records))
	for i, r := range t.Records {
		rows[i] = []string{convert.FormatMaybeFloat(r.Price), convert.FormatTime(r.Timestamp)}
	}
	return e.write(PriceFile, priceHeader, rows)
}

// WriteIntervalRaw keeps the scraped text as is, before normalization.
func (e *Exporter) WriteIntervalRaw(t *types.IntervalTable) (string, error) {
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = []string{r.Label, r.RawPrice}
	}
	return e.write(IntervalRawFile, intervalRawHeader, rows)
}

func (e *Exporter) WriteIntervalNormalized(t *types.NormalizedIntervalTable) (string, error) {
	rows := make([][]string, len(t.Records))
	for i, r := range t.Records {
		rows[i] = []string{
			r.Label,
			convert.FormatMaybeFloat(r.Price),
			formatMaybeTime(r.Start),
			formatMaybeTime(r.End),
			formatMaybeInt(r.Hour()),
		}
	}
	return e.write(IntervalNormalizedFile, intervalNormalizedHeader, rows)
}

func (e *Exporter) WriteWeatherTable(t *types.WeatherTable) (string, error) {
	rows := make([][]string, len(t.Records))
	for i, r := range t.Records {
		rows[i] = []string{
			convert.FormatTime(r.Timestamp),
			convert.FormatMaybeFloat(r.Temperature),
			convert.FormatMaybeFloat(r.Humidity),
			convert.FormatMaybeFloat(r.WindSpeed),
		}
	}
	return e.write(WeatherFile, weatherHeader, rows)
}

func (e *Exporter) WriteCombinedTable(t *types.CombinedTable) (string, error) {
	rows := make([][]string, len(t.Records))
	for i, r := range t.Records {
		row := []string{convert.FormatTime(r.Timestamp), convert.FormatMaybeFloat(r.Price), "", "", "", "", "", "", ""}
		if r.Weather.IsValid() {
			w := r.Weather.Value()
			row[2] = convert.FormatMaybeFloat(w.Temperature)
			row[3] = convert.FormatMaybeFloat(w.Humidity)
			row[4] = convert.FormatMaybeFloat(w.WindSpeed)
		}
		if r.Interval.IsValid() {
			iv := r.Interval.Value()
			row[5] = iv.Label
			row[6] = convert.FormatMaybeFloat(iv.Price)
			row[7] = formatMaybeTime(iv.End)
			row[8] = formatMaybeInt(iv.Hour())
		}
		rows[i] = row
	}
	return e.write(CombinedFile, combinedHeader, rows)
}

func (e *Exporter) write(name string, header []string, rows [][]string) (string, error) {
	path := e.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write header of %s: %w", name, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write rows of %s: %w", name, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return path, nil
}

func formatMaybeTime(m maybe.Maybe[time.Time]) string {
	if !m.IsValid() {
		return ""
	}
	return convert.FormatTime(m.Value())
}

func formatMaybeInt(m maybe.Maybe[int]) string {
	if !m.IsValid() {
		return ""
	}
	return strconv.Itoa(m.Value())
}
