package task

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angas/imbalance-go/database"
	"github.com/angas/imbalance-go/export"
	"github.com/angas/imbalance-go/hours"
	"github.com/angas/imbalance-go/normalize"
	"github.com/angas/imbalance-go/report"
	"github.com/angas/imbalance-go/types"
	"github.com/angas/imbalance-go/types/maybe"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakePrices struct {
	table *types.PriceTable
	err   error
}

func (f fakePrices) GetPriceTable(context.Context) (*types.PriceTable, error) {
	return f.table, f.err
}

type fakeIntervals struct {
	table *types.IntervalTable
	err   error
}

func (f fakeIntervals) GetIntervalTable(context.Context) (*types.IntervalTable, error) {
	return f.table, f.err
}

type fakeWeather struct {
	table *types.WeatherTable
	err   error
}

func (f fakeWeather) GetWeatherTable(context.Context) (*types.WeatherTable, error) {
	return f.table, f.err
}

type memoryJournal struct {
	runs   map[string]string
	stages []database.StageRow
}

func (j *memoryJournal) StartRun(_ context.Context, trigger string, _ time.Time) (string, error) {
	if j.runs == nil {
		j.runs = map[string]string{}
	}
	id := "run-1"
	j.runs[id] = database.StatusRunning
	return id, nil
}

func (j *memoryJournal) SaveStage(_ context.Context, r database.StageRow) error {
	j.stages = append(j.stages, r)
	return nil
}

func (j *memoryJournal) FinishRun(_ context.Context, id string, _ time.Time, status string, _ sql.NullFloat64) error {
	j.runs[id] = status
	return nil
}

type memoryPublisher struct {
	published []any
}

func (p *memoryPublisher) Publish(v any) error {
	p.published = append(p.published, v)
	return nil
}

func testSources() Sources {
	return Sources{
		Prices: fakePrices{table: &types.PriceTable{Records: []types.PriceRecord{
			{Timestamp: t0, Price: maybe.Some(10.0)},
			{Timestamp: t0.Add(15 * time.Minute), Price: maybe.Some(-4.5)},
		}}},
		Intervals: fakeIntervals{table: &types.IntervalTable{Rows: []types.IntervalRow{
			{Label: "00:00 - 00:15", RawPrice: "12,5"},
			{Label: "00:15 - 00:30", RawPrice: "-3,25"},
			{Label: "bad", RawPrice: "n/a"},
		}}},
		Weather: fakeWeather{table: &types.WeatherTable{Records: []types.WeatherRecord{
			{Timestamp: t0, Temperature: maybe.Some(1.5), Humidity: maybe.Some(80.0), WindSpeed: maybe.Some(3.0)},
		}}},
	}
}

func newTestPipeline(t *testing.T, dir string, sources Sources, opts ...PipelineOption) *Pipeline {
	t.Helper()
	ref, err := hours.ParseDate("2024-01-01", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exporter, err := export.New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tm, err := report.NewTemplateManager(slog.Default(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewPipeline(sources, normalize.New(slog.Default(), ref), exporter, report.New(slog.Default(), tm), 10, opts...)
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	journal := &memoryJournal{}
	publisher := &memoryPublisher{}
	p := newTestPipeline(t, dir, testSources(), WithConsole(&console), WithJournal(journal), WithPublisher(publisher))

	result := p.Run(context.Background(), slog.Default(), "manual")

	if result.Status() != database.StatusOK {
		t.Errorf("expected status ok, got %s (%+v)", result.Status(), result.Stages)
	}
	if result.RunID != "run-1" || journal.runs["run-1"] != database.StatusOK {
		t.Errorf("expected journaled run, got %+v", journal.runs)
	}
	if len(journal.stages) != 6 {
		t.Errorf("expected 6 journaled stages, got %d", len(journal.stages))
	}

	for _, name := range []string{
		export.PriceFile, export.IntervalRawFile, export.IntervalNormalizedFile,
		export.WeatherFile, export.CombinedFile, report.ChartsFile, report.HTMLFile,
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}

	out := console.String()
	if !strings.Contains(out, "Data saved to "+filepath.Join(dir, export.CombinedFile)) {
		t.Errorf("expected save message for combined data, got\n%s", out)
	}
	// One of two valid interval prices is negative.
	if !strings.Contains(out, "Frequency of low or negative prices: 50.00%") {
		t.Errorf("expected frequency line, got\n%s", out)
	}

	combined, err := os.ReadFile(filepath.Join(dir, export.CombinedFile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "datetime,imbalance_price,Temperature,Humidity,Wind Speed,Timestamp,Imbalance Price,DateTime End,Hour\n" +
		"2024-01-01T00:00:00Z,10,1.5,80,3,00:00 - 00:15,12.5,2024-01-01T00:15:00Z,0\n" +
		"2024-01-01T00:15:00Z,-4.5,,,,00:15 - 00:30,-3.25,2024-01-01T00:30:00Z,0\n"
	if string(combined) != expected {
		t.Errorf("expected\n%s\ngot\n%s", expected, combined)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 published summary, got %d", len(publisher.published))
	}
	summary := publisher.published[0].(RunSummary)
	if summary.CombinedRecords != 2 || summary.LowPriceFrequency == nil || *summary.LowPriceFrequency != 0.5 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestPipelineIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	p := newTestPipeline(t, dir, testSources())

	read := func() map[string][]byte {
		files := map[string][]byte{}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, e := range entries {
			b, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			files[e.Name()] = b
		}
		return files
	}

	p.Run(context.Background(), slog.Default(), "manual")
	first := read()
	p.Run(context.Background(), slog.Default(), "manual")
	second := read()

	if len(first) != 7 || len(first) != len(second) {
		t.Fatalf("expected 7 files twice, got %d and %d", len(first), len(second))
	}
	for name, b := range first {
		if !bytes.Equal(b, second[name]) {
			t.Errorf("%s differs between runs", name)
		}
	}
}

func TestPipelineContinuesAfterFailures(t *testing.T) {
	dir := t.TempDir()
	sources := testSources()
	sources.Intervals = fakeIntervals{err: types.ErrNoTable}
	sources.Weather = fakeWeather{err: errors.New("connection refused")}
	journal := &memoryJournal{}
	p := newTestPipeline(t, dir, sources, WithJournal(journal))

	result := p.Run(context.Background(), slog.Default(), "manual")

	statuses := map[string]string{}
	for _, s := range result.Stages {
		statuses[s.Stage] = s.Status
	}
	expected := map[string]string{
		"prices":    database.StatusOK,
		"intervals": database.StatusFailed,
		"weather":   database.StatusFailed,
		"analysis":  database.StatusSkipped,
		"report":    database.StatusOK,
		"merge":     database.StatusOK,
	}
	for stage, status := range expected {
		if statuses[stage] != status {
			t.Errorf("stage %s: expected %s, got %s", stage, status, statuses[stage])
		}
	}
	if !errors.Is(result.Stages[1].Err, types.ErrNoTable) {
		t.Errorf("expected ErrNoTable, got %v", result.Stages[1].Err)
	}
	if result.Status() != database.StatusFailed || journal.runs["run-1"] != database.StatusFailed {
		t.Errorf("expected failed run")
	}
	if result.Combined.Len() != 2 || result.Combined.Records[0].Weather.IsValid() {
		t.Errorf("expected price rows without weather, got %+v", result.Combined)
	}
}

func TestPipelineMissingJoinKey(t *testing.T) {
	sources := testSources()
	sources.Prices = fakePrices{err: types.ErrMissingField}
	p := newTestPipeline(t, t.TempDir(), sources)

	result := p.Run(context.Background(), slog.Default(), "manual")

	merge := result.Stages[len(result.Stages)-1]
	if merge.Stage != "merge" || !errors.Is(merge.Err, types.ErrMissingJoinKey) {
		t.Errorf("expected merge to fail with ErrMissingJoinKey, got %+v", merge)
	}
	if result.Summary == nil {
		t.Errorf("expected aggregation to run without table A")
	}
}

func TestPipelineRemovesOutputOfFailedStage(t *testing.T) {
	dir := t.TempDir()
	newTestPipeline(t, dir, testSources()).Run(context.Background(), slog.Default(), "manual")
	if _, err := os.Stat(filepath.Join(dir, export.WeatherFile)); err != nil {
		t.Fatalf("expected weather file after the first run: %v", err)
	}

	sources := testSources()
	sources.Weather = fakeWeather{err: errors.New("connection refused")}
	result := newTestPipeline(t, dir, sources).Run(context.Background(), slog.Default(), "manual")

	if result.Stages[2].Status != database.StatusFailed {
		t.Fatalf("expected weather stage to fail, got %+v", result.Stages[2])
	}
	if _, err := os.Stat(filepath.Join(dir, export.WeatherFile)); !os.IsNotExist(err) {
		t.Errorf("expected weather file of the first run to be removed, got %v", err)
	}
	for _, name := range []string{export.PriceFile, export.IntervalNormalizedFile, export.CombinedFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be rewritten: %v", name, err)
		}
	}
}
