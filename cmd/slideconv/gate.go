package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openwsi/slideconv/internal/config"
	"github.com/openwsi/slideconv/internal/gate"
	"github.com/openwsi/slideconv/internal/keycloak"
	"github.com/openwsi/slideconv/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run the archive access gate",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		_, cleanup := log.Setup(cfg.Service.LogLevel)
		defer cleanup()

		logger := zap.S().Named("gate")
		logger.Info("Starting access gate")
		defer logger.Info("Access gate stopped")

		kc := keycloak.NewClient(keycloak.Config{
			URL:          cfg.Keycloak.URL,
			Realm:        cfg.Keycloak.Realm,
			ClientID:     cfg.Keycloak.ClientID,
			ClientSecret: cfg.Keycloak.ClientSecret,
		})

		server, err := gate.NewServer(cfg, kc)
		if err != nil {
			return fmt.Errorf("initializing gate: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		return server.Run(ctx)
	},
}
