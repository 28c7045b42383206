package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/angas/imbalance-go/config"
	"github.com/angas/imbalance-go/database"
	"github.com/angas/imbalance-go/export"
	"github.com/angas/imbalance-go/logging"
	"github.com/angas/imbalance-go/mqttpub"
	"github.com/angas/imbalance-go/normalize"
	"github.com/angas/imbalance-go/opendata"
	"github.com/angas/imbalance-go/openmeteo"
	"github.com/angas/imbalance-go/pricepage"
	"github.com/angas/imbalance-go/report"
	"github.com/angas/imbalance-go/task"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	once := flag.Bool("once", false, "run the pipeline once and exit, even if a schedule is configured")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cnfg, err := loader.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.New(consoleHandler).Debug("imbalance pipeline is starting...", slog.String("version", Version))

	if isInteractive() {
		promptMissingURLs(cnfg, os.Stdin, os.Stdout)
	}

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	var publisher task.Publisher
	if cnfg.Mqtt.Enabled() {
		mq := mqttpub.New(cnfg.Mqtt.Host, cnfg.Mqtt.Port, cnfg.Mqtt.Username, cnfg.Mqtt.Password, cnfg.Mqtt.Topic)
		if err := mq.Connect(); err != nil {
			logger.Warn("MQTT connection error, summaries will not be published", slog.Any("error", err))
		} else {
			defer mq.Disconnect()
			publisher = mq
		}
	}

	templates, err := report.NewTemplateManager(logger.With("module", "report"), cnfg.Output.WwwDir)
	if err != nil {
		panic(fmt.Sprintf("failed to load report templates: %v", err))
	}
	defer templates.Close()

	pipeline, err := newPipeline(cnfg, db, publisher, templates)
	if err != nil {
		panic(fmt.Sprintf("failed to set up pipeline: %v", err))
	}

	if *once || cnfg.Schedule.RunAt == "" {
		result := pipeline.Run(ctx, logger.With(slog.String("task", "pipeline")), "manual")
		logger.Info("run finished", slog.String("status", result.Status()), slog.String(logging.RunKey, result.RunID))
		return
	}

	tasks := task.NewTasks(ctx, pipeline,
		task.NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg))
	if err := tasks.Run(cnfg.Schedule.RunAt, cnfg.Schedule.GetMaintenanceAt()); err != nil {
		panic(fmt.Sprintf("failed to schedule tasks: %v", err))
	}
	defer func() { <-tasks.Stop().Done() }()
	logger.Info("pipeline scheduled", slog.String("runAt", cnfg.Schedule.RunAt))

	loader.Watch(func(c *config.AppConfig) {
		// Interactively entered URLs survive a reload that leaves them empty.
		if c.Sources.ImbalanceJSON.URL == "" {
			c.Sources.ImbalanceJSON.URL = cnfg.Sources.ImbalanceJSON.URL
		}
		if c.Sources.ImbalanceHTML.URL == "" {
			c.Sources.ImbalanceHTML.URL = cnfg.Sources.ImbalanceHTML.URL
		}
		p, err := newPipeline(c, db, publisher, templates)
		if err != nil {
			logger.Error("keeping previous pipeline", slog.Any("error", err))
			return
		}
		tasks.SetPipeline(p)
		logger.Info("pipeline reconfigured, schedule changes need a restart")
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("main context done")
	case sig := <-sigCh:
		logger.Info("received signal", slog.Any("signal", sig))
		cancel()
	}
}

func newPipeline(cnfg *config.AppConfig, db *database.Database, publisher task.Publisher, templates *report.TemplateManager) (*task.Pipeline, error) {
	loc, err := cnfg.Normalize.GetLocation()
	if err != nil {
		return nil, err
	}
	ref, err := cnfg.Normalize.GetReferenceDate()
	if err != nil {
		return nil, err
	}
	exporter, err := export.New(cnfg.Output.Dir)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cnfg.Http.GetTimeout()}
	src := cnfg.Sources
	sources := task.Sources{
		Prices:    opendata.New(client, src.ImbalanceJSON.URL, src.ImbalanceJSON.GetQuery(), src.ImbalanceJSON.GetSchema(), loc),
		Intervals: pricepage.New(client, src.ImbalanceHTML.URL),
		Weather:   openmeteo.New(client, src.Weather.GetURL(), src.Weather.GetRequest(), loc),
	}

	opts := []task.PipelineOption{task.WithJournal(db), task.WithConsole(os.Stdout)}
	if publisher != nil {
		opts = append(opts, task.WithPublisher(publisher))
	}

	return task.NewPipeline(
		sources,
		normalize.New(slog.Default(), ref),
		exporter,
		report.New(slog.Default().With("module", "report"), templates),
		cnfg.Analysis.GetHistogramBins(),
		opts...), nil
}

func isInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// promptMissingURLs asks for source URLs the configuration leaves empty.
// An empty answer leaves the source unset, its stage then fails.
func promptMissingURLs(cnfg *config.AppConfig, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	ask := func(name string, target *string) {
		for *target == "" {
			fmt.Fprintf(out, "%s URL: ", name)
			if !scanner.Scan() {
				return
			}
			answer := strings.TrimSpace(scanner.Text())
			if answer == "" {
				return
			}
			if u, err := url.Parse(answer); err != nil || u.Scheme == "" || u.Host == "" {
				fmt.Fprintln(out, "not a valid URL")
				continue
			}
			*target = answer
		}
	}
	ask("Imbalance price API", &cnfg.Sources.ImbalanceJSON.URL)
	ask("Imbalance price page", &cnfg.Sources.ImbalanceHTML.URL)
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	time.Sleep(1 * time.Second)
	os.Exit(1)
}
