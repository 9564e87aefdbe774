package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vibast-solutions/ms-go-payment-links/app/repository"
	"github.com/vibast-solutions/ms-go-payment-links/app/service"
	"github.com/vibast-solutions/ms-go-payment-links/config"
)

var replaySourceSQLite string

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild payment records from the audit log",
	Long: "Re-apply the audit log in sequence order to the configured store. Creation entries recreate missing records; " +
		"webhook and sync entries are reconciled again without writing new audit entries. " +
		"By default the configured store's own audit log is read; --source-sqlite reads it from another SQLite file.",
	Run: func(_ *cobra.Command, _ []string) {
		rt := mustCreateRuntime()
		defer rt.Close()

		var source service.AuditLogReader = rt.audit
		if replaySourceSQLite != "" {
			db, err := openDatabase(context.Background(), config.StoreConfig{
				Driver:     config.StoreDriverSQLite,
				SQLitePath: replaySourceSQLite,
			})
			if err != nil {
				logrus.WithError(err).Fatal("Failed to open replay source")
			}
			defer func() {
				if err := db.Close(); err != nil {
					logrus.WithError(err).Warn("Failed to close replay source")
				}
			}()
			source = repository.NewAuditLogRepository(db)
		}

		start := time.Now()
		stats, err := rt.paymentService.ReplayAuditLog(context.Background(), source)
		entry := logrus.WithField("latency", time.Since(start).String())
		if stats != nil {
			entry = entry.WithFields(logrus.Fields{
				"entries":    stats.Entries,
				"created":    stats.Created,
				"skipped":    stats.Skipped,
				"reconciled": stats.Reconciled,
				"failed":     stats.Failed,
			})
		}
		if err != nil {
			entry.WithError(err).Fatal("Replay failed")
		}
		entry.Info("Replay completed")
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVar(&replaySourceSQLite, "source-sqlite", "", "Read the audit log from this SQLite file instead of the configured store")
}
