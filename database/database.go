package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
	_ "modernc.org/sqlite"

	"gowa-blast/config"
)

// Store bundles the shared connection, the whatsmeow session container
// and the application tables. One database holds everything: the
// whatsmeow schema lives alongside the blast history and credential
// tables.
type Store struct {
	DB        *sql.DB
	Container *sqlstore.Container
	log       zerolog.Logger
}

// Connect opens the configured database, runs the whatsmeow schema
// migrations and creates the application tables.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*Store, error) {
	var (
		db      *sql.DB
		dialect string
		err     error
	)
	switch cfg.Dialect {
	case "postgres":
		db, err = sql.Open("postgres", cfg.URL)
		dialect = "postgres"
	case "sqlite", "":
		dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)", cfg.URL)
		db, err = sql.Open("sqlite", dsn)
		dialect = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", cfg.Dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	container := sqlstore.NewWithDB(db, dialect, waLog.Zerolog(log.With().Str("component", "sqlstore").Logger()))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("upgrade whatsmeow schema: %w", err)
	}

	s := &Store{DB: db, Container: container, log: log}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init app schema: %w", err)
	}
	log.Info().Str("dialect", dialect).Msg("database connected")
	return s, nil
}

// HasPairedDevice reports whether the whatsmeow store already holds a
// linked device, meaning a session can be restored without pairing.
func (s *Store) HasPairedDevice(ctx context.Context) bool {
	devices, err := s.Container.GetAllDevices(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("list devices failed")
		return false
	}
	for _, device := range devices {
		if device.ID != nil {
			return true
		}
	}
	return false
}

func (s *Store) Close() error {
	return s.DB.Close()
}
