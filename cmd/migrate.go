package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vibast-solutions/ms-go-payment-links/app/repository"
	"github.com/vibast-solutions/ms-go-payment-links/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the payment tables in the configured SQL store",
	Run: func(_ *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		if cfg.Store.Driver == config.StoreDriverMemory {
			logrus.Info("Memory store has no schema, nothing to migrate")
			return
		}

		ctx := context.Background()
		db, err := openDatabase(ctx, cfg.Store)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to open database")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close database")
			}
		}()

		if err := repository.Migrate(ctx, db, cfg.Store.Driver); err != nil {
			logrus.WithError(err).Fatal("Migration failed")
		}
		logrus.WithField("driver", cfg.Store.Driver).Info("Migration completed")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
