package cliutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupDatabase opens a gorm handle from a database URL. Supported forms
// are sqlite://<path> (or sqlite=<path>) and postgres://... (or
// postgres=<dsn>). Gorm's own logging goes through slog.
func SetupDatabase(dburl string, maxConnections int) (*gorm.DB, error) {
	var dial gorm.Dialector

	isSqlite := false
	openConns := maxConnections
	if suffix, ok := trimPrefix(dburl, "sqlite://", "sqlite="); ok {
		// if this isn't ":memory:", ensure that the directory exists (eg,
		// if the db file is being initialized)
		if !strings.Contains(suffix, ":memory:") {
			os.MkdirAll(filepath.Dir(suffix), os.ModePerm)
		}
		dial = sqlite.Open(suffix)
		openConns = 1
		isSqlite = true
	} else if strings.HasPrefix(dburl, "postgresql://") || strings.HasPrefix(dburl, "postgres://") {
		// can pass entire URL, with prefix, to gorm driver
		dial = postgres.Open(dburl)
	} else if dsn, ok := trimPrefix(dburl, "postgres="); ok {
		dial = postgres.Open(dsn)
	} else {
		return nil, fmt.Errorf("unsupported or unrecognized database URL scheme")
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqldb.SetMaxIdleConns(openConns)
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		// Set pragmas for sqlite
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			return nil, err
		}
		if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
			return nil, err
		}
	}

	return db, nil
}

func trimPrefix(s string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return s[len(p):], true
		}
	}
	return "", false
}

// SetupSlog configures the default slog logger from the CANOPY_LOG_LEVEL
// and CANOPY_LOG_FMT (text|json) environment variables, overridable by the
// level argument.
func SetupSlog(level string) (*slog.Logger, error) {
	if level == "" {
		level = os.Getenv("CANOPY_LOG_LEVEL")
	}
	var hopts slog.HandlerOptions
	switch strings.ToLower(level) {
	case "", "info":
		hopts.Level = slog.LevelInfo
	case "debug":
		hopts.Level = slog.LevelDebug
	case "warn":
		hopts.Level = slog.LevelWarn
	case "error":
		hopts.Level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level: %#v", level)
	}

	var handler slog.Handler
	if strings.ToLower(os.Getenv("CANOPY_LOG_FMT")) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &hopts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, &hopts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
