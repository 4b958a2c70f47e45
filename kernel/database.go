package kernel

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"git.sr.ht/~aondrejcak/policy-console/store"
)

// PrepareDatabase swaps the in-memory store for MySQL when DATABASE_DSN is set.
func (art *AppRuntime) PrepareDatabase() error {
	if art.DatabaseDSN == "" {
		log.Info().Msg("DATABASE_DSN not set, sessions are kept in memory")
		return nil
	}

	level := logger.Warn
	if art.LogLevel == "debug" || art.LogLevel == "trace" {
		level = logger.Info
	}
	dbLogger := logger.New(
		&log.Logger,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(art.DatabaseDSN), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return err
	}

	if err = db.Use(otelgorm.NewPlugin(
		otelgorm.WithAttributes(),
		otelgorm.WithTracerProvider(otel.GetTracerProvider()),
	)); err != nil {
		return err
	}

	gs := store.NewGorm(db)
	if err = gs.Migrate(); err != nil {
		return err
	}

	art.DatabaseClient = db
	art.Store = gs

	return nil
}
