package task

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

type Tasks struct {
	ctx             context.Context
	cron            *cron.Cron
	logger          *slog.Logger
	mu              sync.RWMutex
	pipeline        *Pipeline
	MaintenanceTask func()
}

// NewTasks schedules whole pipeline runs, a run still in progress makes the
// next tick a no-op instead of overlapping. Cancelling ctx aborts the fetches
// of a run in flight.
func NewTasks(ctx context.Context, pipeline *Pipeline, maintenance func()) *Tasks {
	logger := slog.Default().With("module", "tasks")
	cl := cronLogger{logger: logger}
	return &Tasks{
		ctx:             ctx,
		cron:            cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:          logger,
		pipeline:        pipeline,
		MaintenanceTask: maintenance,
	}
}

// SetPipeline swaps the pipeline used from the next run on, e.g. after a
// configuration reload.
func (t *Tasks) SetPipeline(p *Pipeline) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pipeline = p
}

func (t *Tasks) PipelineTask(trigger string) func() {
	logger := t.logger.With(slog.String("task", "pipeline"))
	return func() {
		t.mu.RLock()
		p := t.pipeline
		t.mu.RUnlock()

		logger.Debug("running pipeline task...")
		p.Run(t.ctx, logger, trigger)
	}
}

func (t *Tasks) Run(runAt string, maintenanceAt string) error {
	if _, err := t.cron.AddFunc(runAt, t.PipelineTask("schedule")); err != nil {
		return err
	}
	if t.MaintenanceTask != nil {
		if _, err := t.cron.AddFunc(maintenanceAt, t.MaintenanceTask); err != nil {
			return err
		}
	}
	t.cron.Start()
	return nil
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
