package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/angas/imbalance-go/analysis"
	"github.com/angas/imbalance-go/chartjs"
	"github.com/angas/imbalance-go/types"
)

const (
	ChartsFile = "charts.json"
	HTMLFile   = "report.html"

	timeLabelLayout = "2006-01-02 15:04"
)

// Input is what a report is built from. Any table may be nil, its chart is
// then left out. Summary is nil when aggregation was skipped.
type Input struct {
	Prices    *types.PriceTable
	Intervals *types.NormalizedIntervalTable
	Weather   *types.WeatherTable
	Summary   *analysis.Summary
	Bins      int
}

type page struct {
	PriceRecords    int
	IntervalRecords int
	WeatherRecords  int
	Summary         *analysis.Summary
	Charts          []chartjs.Chart
}

type Reporter struct {
	logger    *slog.Logger
	templates *TemplateManager
}

func New(logger *slog.Logger, templates *TemplateManager) *Reporter {
	return &Reporter{logger: logger, templates: templates}
}

// Charts builds, in order: interval price histogram, interval average price
// by hour, open-data price histogram and temperature trend.
func Charts(in Input) []chartjs.Chart {
	charts := make([]chartjs.Chart, 0, 4)

	if in.Summary != nil {
		if bins := analysis.Histogram(analysis.NonNull(in.Intervals.Prices()), in.Bins); bins != nil {
			charts = append(charts, chartjs.NewHistogram("Distribution of Imbalance Prices (Company Y)", bins))
		}

		hourly := chartjs.NewHourlyChart("Average Imbalance Price by Hour (Company Y)")
		for _, m := range in.Summary.HourlyMeans {
			hourly.Data.Datasets[0].Data[m.Hour] = chartjs.FixedFloat64(m.Mean, 2)
		}
		hourly.Options.Scales["x"] = hourly.Options.Scales["x"].WithTitle("Hour of Day")
		hourly.Options.Scales["y"] = hourly.Options.Scales["y"].WithTitle("Average Imbalance Price")
		charts = append(charts, hourly)
	}

	if in.Prices.Len() > 0 {
		prices := make([]float64, 0, in.Prices.Len())
		for _, r := range in.Prices.Records {
			if r.Price.IsValid() {
				prices = append(prices, r.Price.Value())
			}
		}
		if bins := analysis.Histogram(prices, in.Bins); bins != nil {
			charts = append(charts, chartjs.NewHistogram("Distribution of Imbalance Prices (Company X)", bins))
		}
	}

	if in.Weather.Len() > 0 {
		labels := make([]string, in.Weather.Len())
		for i, r := range in.Weather.Records {
			labels[i] = r.Timestamp.Format(timeLabelLayout)
		}
		trend := chartjs.NewLineChart("Temperature Trend", labels)
		for i, r := range in.Weather.Records {
			if r.Temperature.IsValid() {
				trend.Data.Datasets[0].Data[i] = chartjs.FixedFloat64(r.Temperature.Value(), 2)
			}
		}
		trend.Options.Scales["y"] = trend.Options.Scales["y"].WithTitle("Temperature (°C)")
		charts = append(charts, trend)
	}

	return charts
}

// Render writes charts.json and report.html into dir and returns their paths.
func (r *Reporter) Render(dir string, in Input) ([]string, error) {
	charts := Charts(in)

	chartsPath := filepath.Join(dir, ChartsFile)
	b, err := json.MarshalIndent(charts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode charts: %w", err)
	}
	if err := os.WriteFile(chartsPath, b, 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", ChartsFile, err)
	}

	buf, err := r.templates.Execute(HTMLFile, page{
		PriceRecords:    in.Prices.Len(),
		IntervalRecords: in.Intervals.Len(),
		WeatherRecords:  in.Weather.Len(),
		Summary:         in.Summary,
		Charts:          charts,
	})
	if err != nil {
		return nil, err
	}

	htmlPath := filepath.Join(dir, HTMLFile)
	if err := os.WriteFile(htmlPath, buf.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", HTMLFile, err)
	}

	r.logger.Debug("report rendered", slog.Int("charts", len(charts)))
	return []string{chartsPath, htmlPath}, nil
}
