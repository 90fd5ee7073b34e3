package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/richxcame/civic-reports/migrations"
	"github.com/richxcame/civic-reports/pkg/config"
	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	steps := flag.Int("steps", 0, "apply N migrations (negative rolls back); 0 applies all pending")
	down := flag.Bool("down", false, "roll back every migration")
	flag.Parse()

	cfg, err := config.Load("migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Server.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	m, err := newMigrator(cfg.Database.URL())
	if err != nil {
		logger.Fatal("failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	if err := apply(m, *steps, *down); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal("failed to read schema version", zap.Error(err))
	}
	logger.Info("Schema is up to date", zap.Uint("version", version), zap.Bool("dirty", dirty))
}

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", source, databaseURL)
}

type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
}

func apply(m migrator, steps int, down bool) error {
	var err error
	switch {
	case down:
		err = m.Down()
	case steps != 0:
		err = m.Steps(steps)
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to apply")
		return nil
	}
	return err
}
