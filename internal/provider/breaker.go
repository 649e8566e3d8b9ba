package provider

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/metrics"
	"github.com/rajasatyajit/VesselWatch/internal/models"
)

// BreakerSettings tunes the circuit breaker around a poll adapter
type BreakerSettings struct {
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // count reset period while closed
	Timeout      time.Duration // open period before probing
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerSettings opens after 60% failures over at least 10 calls and
// probes again after two minutes
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Breaker wraps a PollAdapter with a circuit breaker. NotFound answers are
// healthy responses and never count as failures.
type Breaker struct {
	next PollAdapter
	cb   *gobreaker.CircuitBreaker[models.PositionReport]
}

// NewBreaker wraps next
func NewBreaker(next PollAdapter, s BreakerSettings) *Breaker {
	name := next.Name()
	metrics.SetCircuitState(name, 0)

	cb := gobreaker.NewCircuitBreaker[models.PositionReport](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
			metrics.SetCircuitState(name, stateToFloat(to))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch apperrors.Classify(err) {
			case apperrors.KindNotFound, apperrors.KindValidation:
				return true
			}
			return errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Name() string { return b.next.Name() }

// FetchByVesselID calls through the breaker. A rejected call surfaces as a
// TransientError so the caller's retry policy treats it like an outage.
func (b *Breaker) FetchByVesselID(ctx context.Context, vesselID string) (models.PositionReport, error) {
	report, err := b.cb.Execute(func() (models.PositionReport, error) {
		return b.next.FetchByVesselID(ctx, vesselID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.PositionReport{}, &apperrors.TransientError{Provider: b.next.Name(), Err: err}
	}
	return report, err
}

// State returns the breaker's current state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
