package chartjs

import (
	"fmt"
	"math"

	"github.com/angas/imbalance-go/analysis"
	"github.com/angas/imbalance-go/hours"
)

const NoOfHours = 24
const ColorYellow = "#ffc107d4"
const ColorRed = "#f44336d4"
const ColorBlue = "#2196f3d4"

// NewLineChart returns a single dataset line chart with one point per label.
func NewLineChart(title string, labels []string) Chart {
	noPoints := 0
	return newChart("line", title, labels, ChartDataset{
		Data:        make([]*float64, len(labels)),
		BorderWidth: 1,
		Tension:     0.4,
		BorderColor: ColorRed,
		PointRadius: &noPoints,
		SpanGaps:    true,
	})
}

// NewHourlyChart is a line chart over the hours of a day, labelled "0:00".."23:00".
func NewHourlyChart(title string) Chart {
	labels := make([]string, NoOfHours)
	for i := 0; i < NoOfHours; i++ {
		labels[i] = hours.HourLabel(i)
	}
	chart := NewLineChart(title, labels)
	chart.Data.Datasets[0].BorderColor = ColorYellow
	chart.Data.Datasets[0].PointRadius = nil
	chart.Data.Datasets[0].Fill = true
	return chart
}

// NewHistogram turns histogram bins into a bar chart, one bar per bin,
// labelled with the bin's lower edge.
func NewHistogram(title string, bins []analysis.Bin) Chart {
	labels := make([]string, len(bins))
	data := make([]*float64, len(bins))
	for i, b := range bins {
		labels[i] = fmt.Sprintf("%.2f", b.Lower)
		count := float64(b.Count)
		data[i] = &count
	}

	chart := newChart("bar", title, labels, ChartDataset{
		Data:            data,
		BorderWidth:     1,
		BorderColor:     ColorBlue,
		BackgroundColor: ColorBlue,
	})
	chart.Options.Scales["y"] = chart.Options.Scales["y"].WithTitle("Frequency")
	return chart
}

func newChart(kind, title string, labels []string, dataset ChartDataset) Chart {
	chart := Chart{
		Type: kind,
		Data: ChartData{
			Labels:   labels,
			Datasets: []ChartDataset{dataset},
		},
		Options: ChartOptions{
			Responsive: true,
			Plugins: ChartPlugins{
				Legend: ChartLegend{Display: false},
				Title:  ChartTitle{Display: false},
			},
			Scales: map[string]ChartScale{
				"x": {Type: "category", Display: true},
				"y": {Type: "linear", Display: true, Position: "left"},
			},
		},
	}

	if title != "" {
		chart.Options.Plugins.Title = ChartTitle{Display: true, Text: title}
	}

	return chart
}

func (cs ChartScale) WithTitle(title string) ChartScale {
	cs.Title = ChartScaleTitle{Display: true, Text: title}
	return cs
}

func (cs ChartScale) WithMinAndMax(min, max float64) ChartScale {
	cs.Min = &min
	cs.Max = &max
	return cs
}

func FixedFloat64(num float64, precision int) *float64 {
	p := math.Pow(10, float64(precision))
	rounded := math.Round(num * p)
	result := rounded / p
	return &result
}
