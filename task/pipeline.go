package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/angas/imbalance-go/analysis"
	"github.com/angas/imbalance-go/convert"
	"github.com/angas/imbalance-go/database"
	"github.com/angas/imbalance-go/export"
	"github.com/angas/imbalance-go/logging"
	"github.com/angas/imbalance-go/merge"
	"github.com/angas/imbalance-go/normalize"
	"github.com/angas/imbalance-go/report"
	"github.com/angas/imbalance-go/types"
)

const headRows = 5

type Journal interface {
	StartRun(ctx context.Context, trigger string, startedAt time.Time) (string, error)
	SaveStage(ctx context.Context, r database.StageRow) error
	FinishRun(ctx context.Context, id string, finishedAt time.Time, status string, lowPriceFrequency sql.NullFloat64) error
}

type Publisher interface {
	Publish(v any) error
}

type Sources struct {
	Prices    types.PriceTableProvider
	Intervals types.IntervalTableProvider
	Weather   types.WeatherTableProvider
}

// Pipeline fetches the three sources, persists them, aggregates the interval
// prices and joins everything into the combined table. A failing stage is
// logged and journaled, the stages after it run with whatever tables exist.
type Pipeline struct {
	sources    Sources
	normalizer *normalize.Normalizer
	exporter   *export.Exporter
	reporter   *report.Reporter
	bins       int
	journal    Journal
	publisher  Publisher
	console    io.Writer
}

type PipelineOption func(*Pipeline)

// WithJournal records runs and stages, nil disables journaling.
func WithJournal(j Journal) PipelineOption {
	return func(p *Pipeline) { p.journal = j }
}

// WithPublisher sends the run summary after each run.
func WithPublisher(pub Publisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithConsole is where the human readable run summary goes, io.Discard by default.
func WithConsole(w io.Writer) PipelineOption {
	return func(p *Pipeline) { p.console = w }
}

func NewPipeline(sources Sources, normalizer *normalize.Normalizer, exporter *export.Exporter, reporter *report.Reporter, bins int, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sources:    sources,
		normalizer: normalizer,
		exporter:   exporter,
		reporter:   reporter,
		bins:       bins,
		console:    io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type StageResult struct {
	Stage  string
	Status string
	Err    error
}

// RunSummary is what gets published after a run.
type RunSummary struct {
	RunID             string                `json:"run_id"`
	Status            string                `json:"status"`
	PriceRecords      int                   `json:"price_records"`
	IntervalRecords   int                   `json:"interval_records"`
	WeatherRecords    int                   `json:"weather_records"`
	CombinedRecords   int                   `json:"combined_records"`
	DuplicateMatches  int                   `json:"duplicate_matches"`
	LowPriceFrequency *float64              `json:"low_price_frequency"`
	HourlyMeans       []analysis.HourlyMean `json:"hourly_means"`
	FailedStages      []string              `json:"failed_stages"`
}

type Result struct {
	RunID     string
	Prices    *types.PriceTable
	Intervals *types.NormalizedIntervalTable
	Weather   *types.WeatherTable
	Combined  *types.CombinedTable
	Summary   *analysis.Summary
	Files     []string
	Stages    []StageResult
}

func (r *Result) Status() string {
	for _, s := range r.Stages {
		if s.Status == database.StatusFailed {
			return database.StatusFailed
		}
	}
	return database.StatusOK
}

func (r *Result) RunSummary() RunSummary {
	s := RunSummary{
		RunID:           r.RunID,
		Status:          r.Status(),
		PriceRecords:    r.Prices.Len(),
		IntervalRecords: r.Intervals.Len(),
		WeatherRecords:  r.Weather.Len(),
		CombinedRecords: r.Combined.Len(),
		FailedStages:    []string{},
	}
	if r.Combined != nil {
		s.DuplicateMatches = r.Combined.DuplicateMatches
	}
	if r.Summary != nil {
		freq := r.Summary.LowPriceFrequency
		s.LowPriceFrequency = &freq
		s.HourlyMeans = r.Summary.HourlyMeans
	}
	for _, st := range r.Stages {
		if st.Status == database.StatusFailed {
			s.FailedStages = append(s.FailedStages, st.Stage)
		}
	}
	return s
}

type run struct {
	*Pipeline
	ctx    context.Context
	logger *slog.Logger
	result *Result
}

// Run executes one pipeline pass. It never fails as a whole, stage errors
// are reported in the result.
func (p *Pipeline) Run(ctx context.Context, logger *slog.Logger, trigger string) *Result {
	r := &run{Pipeline: p, ctx: ctx, logger: logger, result: &Result{}}

	if p.journal != nil {
		id, err := p.journal.StartRun(context.WithoutCancel(ctx), trigger, time.Now())
		if err != nil {
			logger.Error("could not journal run", slog.Any("error", err))
		} else {
			r.result.RunID = id
			r.logger = logger.With(slog.String(logging.RunKey, id))
		}
	}
	r.logger.Info("pipeline started", slog.String("trigger", trigger))

	r.stage("prices", r.prices, export.PriceFile)
	r.stage("intervals", r.intervals, export.IntervalRawFile, export.IntervalNormalizedFile)
	r.stage("weather", r.weather, export.WeatherFile)
	r.stage("analysis", r.analyze)
	r.stage("report", r.report, report.ChartsFile, report.HTMLFile)
	r.stage("merge", r.merge, export.CombinedFile)

	r.finish()
	return r.result
}

// stage runs fn and journals its outcome. When the stage fails, the outputs
// it did not write in this run are removed so no file from an earlier run is
// mistaken for a fresh one.
func (r *run) stage(name string, fn func() (int, []string, error), outputs ...string) {
	started := time.Now()
	records, files, err := fn()

	status := database.StatusOK
	switch {
	case errors.Is(err, analysis.ErrNoValidPrices):
		status = database.StatusSkipped
		r.logger.Warn("no valid data, stage skipped", slog.String("stage", name))
	case err != nil:
		status = database.StatusFailed
		r.logger.Error("stage failed", slog.String("stage", name), slog.Any("error", err))
		r.removeStale(name, outputs, files)
	default:
		r.logger.Info("stage done", slog.String("stage", name), slog.Int("records", records))
	}

	for _, f := range files {
		fmt.Fprintf(r.console, "Data saved to %s\n", f)
	}
	r.result.Files = append(r.result.Files, files...)
	r.result.Stages = append(r.result.Stages, StageResult{Stage: name, Status: status, Err: err})

	if r.journal == nil || r.result.RunID == "" {
		return
	}
	row := database.StageRow{
		RunID:     r.result.RunID,
		Stage:     name,
		Status:    status,
		Records:   records,
		Duration:  time.Since(started),
		CreatedAt: time.Now(),
	}
	if len(files) > 0 {
		row.Output = files[len(files)-1]
	}
	if err != nil {
		row.Error = err.Error()
	}
	if err := r.journal.SaveStage(context.WithoutCancel(r.ctx), row); err != nil {
		r.logger.Error("could not journal stage", slog.String("stage", name), slog.Any("error", err))
	}
}

func (r *run) removeStale(stage string, outputs []string, written []string) {
	var stale []string
	for _, name := range outputs {
		if !slices.Contains(written, r.exporter.Path(name)) {
			stale = append(stale, name)
		}
	}
	removed, err := r.exporter.Remove(stale...)
	if err != nil {
		r.logger.Error("could not remove stale output", slog.String("stage", stage), slog.Any("error", err))
	}
	for _, f := range removed {
		r.logger.Warn("removed output of an earlier run", slog.String("stage", stage), slog.String("file", f))
	}
}

func (r *run) prices() (int, []string, error) {
	table, err := r.sources.Prices.GetPriceTable(r.ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch price table: %w", err)
	}
	if table == nil {
		return 0, nil, types.ErrNoRecords
	}
	r.result.Prices = table

	path, err := r.exporter.WritePriceTable(table)
	if err != nil {
		return table.Len(), nil, err
	}
	return table.Len(), []string{path}, nil
}

func (r *run) intervals() (int, []string, error) {
	raw, err := r.sources.Intervals.GetIntervalTable(r.ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch interval table: %w", err)
	}
	if raw == nil {
		return 0, nil, types.ErrNoTable
	}

	var files []string
	rawPath, err := r.exporter.WriteIntervalRaw(raw)
	if err != nil {
		return raw.Len(), nil, err
	}
	files = append(files, rawPath)

	table := r.normalizer.IntervalTable(raw)
	r.result.Intervals = table

	path, err := r.exporter.WriteIntervalNormalized(table)
	if err != nil {
		return table.Len(), files, err
	}
	return table.Len(), append(files, path), nil
}

func (r *run) weather() (int, []string, error) {
	table, err := r.sources.Weather.GetWeatherTable(r.ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch weather table: %w", err)
	}
	if table == nil {
		return 0, nil, types.ErrNoRecords
	}
	r.result.Weather = table

	path, err := r.exporter.WriteWeatherTable(table)
	if err != nil {
		return table.Len(), nil, err
	}
	return table.Len(), []string{path}, nil
}

func (r *run) analyze() (int, []string, error) {
	summary, err := analysis.Summarize(r.result.Intervals)
	if err != nil {
		return 0, nil, err
	}
	r.result.Summary = &summary

	fmt.Fprintf(r.console, "Frequency of low or negative prices: %.2f%%\n", summary.LowPriceFrequency*100)
	return summary.ValidPrices, nil, nil
}

func (r *run) report() (int, []string, error) {
	if r.reporter == nil {
		return 0, nil, nil
	}
	files, err := r.reporter.Render(r.exporter.Path(""), report.Input{
		Prices:    r.result.Prices,
		Intervals: r.result.Intervals,
		Weather:   r.result.Weather,
		Summary:   r.result.Summary,
		Bins:      r.bins,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("render report: %w", err)
	}
	return len(files), files, nil
}

func (r *run) merge() (int, []string, error) {
	combined, err := merge.Combine(r.result.Prices, r.result.Weather, r.result.Intervals)
	if err != nil {
		return 0, nil, fmt.Errorf("combine tables: %w", err)
	}
	r.result.Combined = combined

	if combined.DuplicateMatches > 0 {
		r.logger.Warn("join keys matched more than one row", slog.Int("rows", combined.DuplicateMatches))
	}

	path, err := r.exporter.WriteCombinedTable(combined)
	if err != nil {
		return combined.Len(), nil, err
	}
	printHead(r.console, combined)
	return combined.Len(), []string{path}, nil
}

func (r *run) finish() {
	status := r.result.Status()
	var freq sql.NullFloat64
	if r.result.Summary != nil {
		freq = sql.NullFloat64{Float64: r.result.Summary.LowPriceFrequency, Valid: true}
	}

	if r.journal != nil && r.result.RunID != "" {
		// A cancelled run is still recorded as finished.
		if err := r.journal.FinishRun(context.WithoutCancel(r.ctx), r.result.RunID, time.Now(), status, freq); err != nil {
			r.logger.Error("could not journal run result", slog.Any("error", err))
		}
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(r.result.RunSummary()); err != nil {
			r.logger.Error("could not publish run summary", slog.Any("error", err))
		}
	}

	r.logger.Info("pipeline done", slog.String("status", status), slog.Int("files", len(r.result.Files)))
}

func printHead(w io.Writer, t *types.CombinedTable) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "datetime\timbalance_price\tTemperature\tImbalance Price")
	for i, rec := range t.Records {
		if i == headRows {
			break
		}
		temp, intervalPrice := "", ""
		if rec.Weather.IsValid() {
			temp = convert.FormatMaybeFloat(rec.Weather.Value().Temperature)
		}
		if rec.Interval.IsValid() {
			intervalPrice = convert.FormatMaybeFloat(rec.Interval.Value().Price)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", convert.FormatTime(rec.Timestamp), convert.FormatMaybeFloat(rec.Price), temp, intervalPrice)
	}
	tw.Flush()
}
