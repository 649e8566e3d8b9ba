package store

import (
	"context"
	"fmt"

	"github.com/rajasatyajit/VesselWatch/config"
	"github.com/rajasatyajit/VesselWatch/internal/database"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
)

// Open picks the sink from configuration: Postgres when DATABASE_URL is set,
// SQLite when SQLITE_PATH is set, memory otherwise. The returned func releases
// whatever was opened.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, func(), error) {
	switch {
	case cfg.URL != "":
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		pg := NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			db.Close(ctx)
			return nil, nil, err
		}
		return pg, func() { db.Close(context.Background()) }, nil

	case cfg.SQLitePath != "":
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return s, func() { s.Close() }, nil

	default:
		logger.Info("No database configured; using in-memory store")
		return NewInMemoryStore(), func() {}, nil
	}
}
