package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/angas/imbalance-go/config"
	"github.com/angas/imbalance-go/database"
	"github.com/angas/imbalance-go/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	limit := flag.Int("n", 10, "number of runs or log entries to list")
	runID := flag.String("run", "", "list the stages of this run, or with -log its log entries")
	logLevel := flag.String("log", "", "list log entries at or above this level instead of runs")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	switch {
	case *logLevel != "":
		entries, err := db.GetLogEntries(ctx, database.LogFilter{
			MinLevel: logging.LevelFromString(logLevel),
			RunID:    *runID,
		}, *limit)
		if err != nil {
			panic(err)
		}
		fmt.Fprintln(tw, "TIME\tLEVEL\tRUN\tMESSAGE\tATTRS")
		for _, e := range entries {
			run := e.RunID
			if run == "" {
				run = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format(time.DateTime), slog.Level(e.Level), run, e.Message, e.Attrs)
		}

	case *runID != "":
		stages, err := db.GetStages(ctx, *runID)
		if err != nil {
			panic(err)
		}
		fmt.Fprintln(tw, "STAGE\tSTATUS\tRECORDS\tDURATION\tOUTPUT\tERROR")
		for _, s := range stages {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", s.Stage, s.Status, s.Records, s.Duration, s.Output, s.Error)
		}

	default:
		runs, err := db.GetRuns(ctx, *limit)
		if err != nil {
			panic(err)
		}
		fmt.Fprintln(tw, "RUN\tTRIGGER\tSTARTED\tFINISHED\tSTATUS\tLOW PRICES")
		for _, r := range runs {
			finished, freq := "-", "-"
			if r.FinishedAt.Valid {
				finished = r.FinishedAt.Time.Local().Format(time.DateTime)
			}
			if r.LowPriceFrequency.Valid {
				freq = fmt.Sprintf("%.2f%%", r.LowPriceFrequency.Float64*100)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Trigger, r.StartedAt.Local().Format(time.DateTime), finished, r.Status, freq)
		}
	}
}
