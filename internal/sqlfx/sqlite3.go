package sqlfx

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	ConfigHistoryDSN        = "history.dsn"
	ConfigHistoryMigrations = "history.migrations"
)

type HistoryConfig struct {
	DSN            string
	DatabaseName   string
	MigrationsPath string
}

func HistoryConfigProvider(v *viper.Viper) (*HistoryConfig, error) {
	config := &HistoryConfig{
		DSN:            v.GetString(ConfigHistoryDSN),
		DatabaseName:   "segrecovery",
		MigrationsPath: v.GetString(ConfigHistoryMigrations),
	}

	if config.MigrationsPath == "" {
		config.MigrationsPath = "file://migrations/"
	}

	return config, nil
}

// OpenHistoryDatabase returns nil when history is disabled.
func OpenHistoryDatabase(config *HistoryConfig, logger *logrus.Logger) (*sqlx.DB, error) {
	if config.DSN == "" {
		logger.Debug("Recovery history is disabled")
		return nil, nil
	}

	logger.WithField("dsn", config.DSN).Debug("Connecting to DB with DSN")

	db, err := sqlx.Open("sqlite3", config.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to connect to DB")
	}

	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Unable to create instance of migrate")
	}

	m, err := migrate.NewWithDatabaseInstance(config.MigrationsPath, config.DatabaseName, driver)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Unable to read migrations")
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		db.Close()
		return nil, errors.Wrap(err, "Unable to migrate DB")
	}

	// recovery commands finish concurrently, sqlite allows a single writer
	db.SetMaxOpenConns(1)

	return db, nil
}

func CloseHistoryDatabase(lc fx.Lifecycle, db *sqlx.DB) {
	if db == nil {
		return
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
}
