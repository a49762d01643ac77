package main

import (
	"paper-ledger/internal/config"
	"paper-ledger/internal/infrastructure/database"
	"paper-ledger/internal/pkg/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	logger.Init(cfg.Env, cfg.LogLevel)

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database open")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("migrations applied")
}
