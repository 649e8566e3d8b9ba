package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// ReferenceStore exposes the reference data the core reads but does not own
type ReferenceStore interface {
	// LookupVessel returns errors.ErrNotFound for unknown vessels
	LookupVessel(ctx context.Context, id string) (*models.Vessel, error)
	UpsertVessel(ctx context.Context, v models.Vessel) error
	// ListActiveSubscriptions returns active subscriptions covering vesselID,
	// global ones included. An empty vesselID lists every active subscription.
	ListActiveSubscriptions(ctx context.Context, vesselID string) ([]models.Subscription, error)
}

// Sink receives everything the core produces
type Sink interface {
	PersistPositionReports(ctx context.Context, reports []models.PositionReport) error
	UpsertVoyage(ctx context.Context, v models.Voyage) error
	// ActiveVoyage returns errors.ErrNotFound when the vessel has no open voyage
	ActiveVoyage(ctx context.Context, vesselID string) (*models.Voyage, error)
	AppendAlert(ctx context.Context, a models.Alert) error
	// AlertExists reports whether an alert for the key was triggered at or after since
	AlertExists(ctx context.Context, userID, vesselID string, alertType models.AlertType, since time.Time) (bool, error)
}

// Store is the full persistence surface used by the service and its tools
type Store interface {
	ReferenceStore
	Sink
	AddSubscription(ctx context.Context, s models.Subscription) error
	QueryVoyages(ctx context.Context, q models.VoyageQuery) ([]models.Voyage, error)
	QueryAlerts(ctx context.Context, q models.AlertQuery) ([]models.Alert, error)
	Health(ctx context.Context) error
	Close() error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) error
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db != nil && db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type voyageQuerier interface {
	QueryVoyages(ctx context.Context, q models.VoyageQuery) ([]models.Voyage, error)
}

func activeVoyage(ctx context.Context, s voyageQuerier, vesselID string) (*models.Voyage, error) {
	voyages, err := s.QueryVoyages(ctx, models.VoyageQuery{
		VesselIDs: []string{vesselID},
		States:    []models.VoyageState{models.VoyageActive},
		Limit:     1,
	})
	if err != nil {
		return nil, err
	}
	if len(voyages) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return &voyages[0], nil
}
