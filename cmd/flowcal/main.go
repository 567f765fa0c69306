package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	"golang.org/x/term"

	_ "modernc.org/sqlite"

	"github.com/lox/flowcal/internal/store"
)

type Globals struct {
	EnvFile  kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`
	DB       string                   `help:"Path to SQLite database." default:"data/flowcal.db" env:"FLOWCAL_DB"`
	LogLevel string                   `help:"Log level (trace, debug, info, warn, error)." default:"info" env:"FLOWCAL_LOG_LEVEL"`
}

type CLI struct {
	Globals

	Serve  ServeCmd  `cmd:"" help:"Run the HTTP API."`
	Calc   CalcCmd   `cmd:"" help:"Calculate a calibration run from a JSON or CSV file."`
	Latest LatestCmd `cmd:"" help:"Show the most recent saved run for an experiment."`
	Import ImportCmd `cmd:"" help:"Store an exported calibration document as-is."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("flowcal"),
		kong.Description("Flow meter calibration calculator."),
		kong.UsageOnError(),
	)

	if err := setupLogger(cli.LogLevel); err != nil {
		ctx.FatalIfErrorf(err)
	}

	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

func setupLogger(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}
	return nil
}

// openStore opens the database and applies migrations. Another process holding the write
// lock makes Migrate fail with SQLITE_BUSY, so that case is retried.
func openStore(ctx context.Context, path string) (*store.Store, func(), error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	operation := func() error {
		err := st.Migrate()
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		if err != nil {
			logrus.Warnf("database busy, retrying migrate: %v", err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	version, err := st.MigrationVersion()
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("read schema version: %w", err)
	}
	logrus.WithFields(logrus.Fields{"path": path, "version": version}).Debug("database migrated")

	return st, func() { db.Close() }, nil
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
