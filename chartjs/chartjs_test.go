package chartjs

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/angas/imbalance-go/analysis"
)

func TestNewHourlyChart(t *testing.T) {
	chart := NewHourlyChart("Average price by hour")
	labels := chart.Data.Labels
	if len(labels) != NoOfHours {
		t.Fatalf("expected %d labels, got %d", NoOfHours, len(labels))
	}
	if labels[0] != "0:00" || labels[23] != "23:00" {
		t.Errorf("expected labels 0:00..23:00, got %s..%s", labels[0], labels[23])
	}
	if len(chart.Data.Datasets[0].Data) != NoOfHours {
		t.Errorf("expected one data point per hour")
	}
	if !chart.Options.Plugins.Title.Display {
		t.Errorf("expected title to be displayed")
	}
}

func TestNewHistogram(t *testing.T) {
	bins := []analysis.Bin{{Lower: -1, Upper: 0, Count: 3}, {Lower: 0, Upper: 1, Count: 1}}
	chart := NewHistogram("", bins)
	if chart.Type != "bar" {
		t.Errorf("expected bar chart, got %s", chart.Type)
	}
	if *chart.Data.Datasets[0].Data[0] != 3 || *chart.Data.Datasets[0].Data[1] != 1 {
		t.Errorf("expected bin counts as data")
	}
	if chart.Data.Labels[0] != "-1.00" {
		t.Errorf("expected label -1.00, got %s", chart.Data.Labels[0])
	}
	if chart.Options.Plugins.Title.Display {
		t.Errorf("expected no title")
	}
}

func TestNullPointsEncodeAsNull(t *testing.T) {
	chart := NewLineChart("", []string{"a", "b"})
	chart.Data.Datasets[0].Data[1] = FixedFloat64(1.23456, 2)

	b, err := json.Marshal(chart)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(b), `"data":[null,1.23]`) {
		t.Errorf("expected null gap and rounded value, got %s", b)
	}
}
