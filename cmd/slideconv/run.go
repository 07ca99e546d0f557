package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openwsi/slideconv/internal/config"
	"github.com/openwsi/slideconv/internal/consumer"
	"github.com/openwsi/slideconv/internal/convert"
	"github.com/openwsi/slideconv/internal/dicomfile"
	"github.com/openwsi/slideconv/internal/fhir"
	"github.com/openwsi/slideconv/internal/keycloak"
	"github.com/openwsi/slideconv/internal/pacs"
	"github.com/openwsi/slideconv/internal/pipeline"
	"github.com/openwsi/slideconv/internal/publish"
	"github.com/openwsi/slideconv/internal/store"
	"github.com/openwsi/slideconv/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conversion worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		_, cleanup := log.Setup(cfg.Service.LogLevel)
		defer cleanup()

		logger := zap.S().Named("run")
		logger.Info("Starting conversion worker")
		defer logger.Info("Conversion worker stopped")

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

		kc := keycloak.NewClient(keycloak.Config{
			URL:           cfg.Keycloak.URL,
			Realm:         cfg.Keycloak.Realm,
			ClientID:      cfg.Keycloak.ClientID,
			ClientSecret:  cfg.Keycloak.ClientSecret,
			AdminUser:     cfg.Keycloak.AdminUser,
			AdminPass:     cfg.Keycloak.AdminPass,
			StudyPrefix:   cfg.Roles.StudyPrefix,
			PatientPrefix: cfg.Roles.PatientPrefix,
		})

		editor := dicomfile.Editor{}

		var fetcher convert.Fetcher
		if cfg.Storage.Endpoint != "" {
			objectFetcher, err := convert.NewObjectFetcher(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.UseSSL)
			if err != nil {
				return fmt.Errorf("initializing object storage: %w", err)
			}
			fetcher = objectFetcher
		}

		convertStage := convert.NewStage(
			cfg.Service.DataDir,
			convert.NewExecConverter(cfg.Service.ConverterCommand),
			editor,
			fetcher,
		)

		publishStage := publish.NewStage(
			pacs.NewClient(cfg.Pacs.URL, kc.UploaderTokens(cfg.Pacs.UploaderUser, cfg.Pacs.UploaderPass)),
			fhir.NewClient(cfg.Fhir.URL, kc.UploaderTokens(cfg.Fhir.UploaderUser, cfg.Fhir.UploaderPass)),
			editor,
			cfg.Pacs.DicomWebURL,
		)

		p := pipeline.New(s, convertStage, publishStage, kc, cfg.Service.DataDir)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		c := consumer.New(cfg.Queue.URL, cfg.Queue.QueueName, p, cfg.Service.MaxConcurrentJobs)
		return c.Run(ctx)
	},
}
