package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/logger"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/adapter/storage"
	"github.com/Thelmatee/Egoblox-microloan-lending/internal/core/config"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cfg.DatabaseURL == "" {
				return fmt.Errorf("migrate needs DATABASE_URL")
			}
			pool, err := storage.ConnectDB(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			version, err := storage.Migrate(pool)
			if err != nil {
				return err
			}
			log.Info("migrations applied", zap.Uint("version", version))
			return nil
		},
	}
}
