package main

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"recharge-server/internal/infrastructure/config"
)

//go:embed migrations/*.sql
var baseFS embed.FS

//go:embed test_data/*.sql
var devFS embed.FS

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := migrateAll(logger); err != nil {
		logger.Error("migration run failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("migration run finished successfully")
}

func migrateAll(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sql.Open("mysql", cfg.Database.DSN()+"&multiStatements=true")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db, baseFS, "migrations", migratemysql.DefaultMigrationsTable); err != nil {
		return fmt.Errorf("base migrations failed: %w", err)
	}
	logger.Info("base migrations applied")

	// シードは別のバージョン管理テーブルで適用する
	if cfg.Environment == "development" {
		if err := runMigrations(db, devFS, "test_data", "seed_migrations"); err != nil {
			return fmt.Errorf("dev seed migrations failed: %w", err)
		}
		logger.Info("dev seed migrations applied")
	}

	return nil
}

func runMigrations(db *sql.DB, fsys embed.FS, dir, table string) error {
	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{MigrationsTable: table})
	if err != nil {
		return fmt.Errorf("init mysql driver: %w", err)
	}

	return up(driver, fsys, dir)
}

func up(driver database.Driver, fsys embed.FS, dir string) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up: %w", err)
	}

	return nil
}
