package main

import (
	"fmt"

	"github.com/openwsi/slideconv/internal/config"
	"github.com/openwsi/slideconv/internal/store"
	"github.com/openwsi/slideconv/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		_, cleanup := log.Setup(cfg.Service.LogLevel)
		defer cleanup()

		logger := zap.S().Named("migrate")
		logger.Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			return fmt.Errorf("running initial migration: %w", err)
		}

		zap.S().Named("migrate").Info("Db migrated")
		return nil
	},
}
