package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/angas/imbalance-go/config"
)

type Maintainer interface {
	Backup(ctx context.Context) (string, error)
	PurgeBackups(retentionDays int) error
	PurgeLog(ctx context.Context, maxLogEntries int) error
	PurgeRuns(ctx context.Context, before time.Time) error
}

func NewMaintenanceTask(logger *slog.Logger, db Maintainer, cnfg *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()

		if _, err := db.Backup(ctx); err != nil {
			logger.Error("database backup error", slog.Any("error", err))
		}

		if err := db.PurgeBackups(cnfg.Database.GetBackupRetentionDays()); err != nil {
			logger.Error("backup maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeLog(ctx, cnfg.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
		}

		before := time.Now().Add(-24 * time.Hour * time.Duration(cnfg.Database.GetRunRetentionDays()))
		if err := db.PurgeRuns(ctx, before); err != nil {
			logger.Error("run maintenance error", slog.Any("error", err))
		}

		logger.Info("maintenance task done")
	}
}
