package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/domain/stats"
	"github.com/phrazzld/drill-api/internal/platform/postgres"
	"github.com/phrazzld/drill-api/internal/redact"
	"github.com/phrazzld/drill-api/internal/service/auth"
	"github.com/phrazzld/drill-api/internal/service/execution"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	jwtService       auth.JWTService
	executionService execution.Service
}

// newApplication wires stores and services over an open database.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	defaults := practiceDefaults(cfg.Practice)
	app.executionService, err = execution.NewService(
		db,
		postgres.NewPostgresExecutionStore(db, logger),
		postgres.NewPostgresStatsStore(db, logger),
		postgres.NewPostgresCatalogStore(db, logger),
		stats.NewAggregator(),
		execution.Options{
			Defaults: &defaults,
			Rand:     execution.NewRand(cfg.Practice.ShuffleSeed),
			Now:      time.Now,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize execution service: %w", err)
	}

	return app, nil
}

// practiceDefaults is the configuration applied underneath the first patch
// of every execution.
func practiceDefaults(cfg config.PracticeConfig) domain.ExecutionConfig {
	defaults := domain.DefaultExecutionConfig()
	if cfg.DefaultQuestionLanguage != "" {
		defaults.QuestionLanguage = domain.QuestionLanguage(cfg.DefaultQuestionLanguage)
	}
	return defaults
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", redact.ErrorAttr(err))
		return
	}
	app.logger.Info("database connection closed")
}
