package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// InMemoryStore implements Store using in-memory storage
type InMemoryStore struct {
	mu            sync.RWMutex
	vessels       map[string]models.Vessel
	subscriptions map[string]models.Subscription
	reports       map[string]models.PositionReport
	voyages       map[string]models.Voyage
	alerts        []models.Alert
}

// NewInMemoryStore creates a new in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		vessels:       make(map[string]models.Vessel),
		subscriptions: make(map[string]models.Subscription),
		reports:       make(map[string]models.PositionReport),
		voyages:       make(map[string]models.Voyage),
	}
}

func (s *InMemoryStore) LookupVessel(ctx context.Context, id string) (*models.Vessel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vessels[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &v, nil
}

// UpsertVessel keeps the original first-seen time of known vessels
func (s *InMemoryStore) UpsertVessel(ctx context.Context, v models.Vessel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.vessels[v.MMSI]; ok && !old.FirstSeenAt.IsZero() {
		v.FirstSeenAt = old.FirstSeenAt
	}
	s.vessels[v.MMSI] = v
	return nil
}

func (s *InMemoryStore) ListActiveSubscriptions(ctx context.Context, vesselID string) ([]models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Subscription
	for _, sub := range s.subscriptions {
		if !sub.IsActive {
			continue
		}
		if vesselID == "" || sub.Covers(vesselID) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AddSubscription inserts or replaces a subscription by id
func (s *InMemoryStore) AddSubscription(ctx context.Context, sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptions[sub.ID] = sub
	return nil
}

// PersistPositionReports ignores reports already stored under the same key
func (s *InMemoryStore) PersistPositionReports(ctx context.Context, reports []models.PositionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range reports {
		k := r.Key()
		if _, ok := s.reports[k]; ok {
			continue
		}
		s.reports[k] = r
	}
	return nil
}

// ReportCount returns the number of stored reports
func (s *InMemoryStore) ReportCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

func (s *InMemoryStore) UpsertVoyage(ctx context.Context, v models.Voyage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.voyages[v.ID] = v
	return nil
}

func (s *InMemoryStore) AppendAlert(ctx context.Context, a models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *InMemoryStore) AlertExists(ctx context.Context, userID, vesselID string, alertType models.AlertType, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.alerts {
		if a.UserID == userID && a.VesselID == vesselID && a.AlertType == alertType && !a.TriggeredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ActiveVoyage(ctx context.Context, vesselID string) (*models.Voyage, error) {
	return activeVoyage(ctx, s, vesselID)
}

// QueryVoyages returns matching voyages, most recent start first
func (s *InMemoryStore) QueryVoyages(ctx context.Context, q models.VoyageQuery) ([]models.Voyage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Voyage
	for _, v := range s.voyages {
		if q.Matches(v) {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})
	return paginate(result, 0, q.Limit), nil
}

// QueryAlerts retrieves alerts from memory based on query parameters
func (s *InMemoryStore) QueryAlerts(ctx context.Context, q models.AlertQuery) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Alert
	for _, alert := range s.alerts {
		if q.Matches(alert) {
			result = append(result, alert)
		}
	}

	// Sort by TriggeredAt descending
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TriggeredAt.After(result[j].TriggeredAt)
	})

	return paginate(result, q.Offset, q.Limit), nil
}

// Health always returns nil for in-memory store
func (s *InMemoryStore) Health(ctx context.Context) error {
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
