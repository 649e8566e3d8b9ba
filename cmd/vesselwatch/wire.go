package main

import (
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/rajasatyajit/VesselWatch/config"
	"github.com/rajasatyajit/VesselWatch/internal/geocoder"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/notify"
	"github.com/rajasatyajit/VesselWatch/internal/pipeline"
	"github.com/rajasatyajit/VesselWatch/internal/provider"
	"github.com/rajasatyajit/VesselWatch/internal/ratelimit"
	"github.com/rajasatyajit/VesselWatch/internal/store"
	"github.com/rajasatyajit/VesselWatch/internal/voyage"
	"github.com/rajasatyajit/VesselWatch/pkg/utils"
)

// buildPipeline assembles the pipeline shared by serve and replay. Provider
// adapters are attached only when live is set.
func buildPipeline(cfg *config.Config, st store.Store, rdb *redis.Client, live bool) (*pipeline.Pipeline, error) {
	ports, err := geocoder.Load(cfg.Ports.File, cfg.Ports.RadiusKm)
	if err != nil {
		return nil, fmt.Errorf("load ports: %w", err)
	}

	dispatcher, err := notify.Build(
		cfg.Notify.WebhookURL,
		cfg.Notify.WebhookRateLimit,
		rdb,
		cfg.Notify.RedisChannel,
		cfg.Notify.InboxSize,
	)
	if err != nil {
		return nil, fmt.Errorf("notification sinks: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithPorts(ports),
		pipeline.WithNotifier(notify.New(dispatcher, st)),
		pipeline.WithSegmentation(voyage.Config{
			MinSpeedKnots: cfg.Segment.MinSpeedKnots,
			MinDistanceKm: cfg.Segment.MinDistanceKm,
			MaxStationary: time.Duration(cfg.Segment.MaxStationaryHours * float64(time.Hour)),
		}),
		pipeline.WithMovementThreshold(cfg.Alert.MovementThresholdKnots),
		pipeline.WithReconnect(cfg.Providers.AISStream.ReconnectMin, cfg.Providers.AISStream.ReconnectMax),
	}

	if rdb != nil {
		dedup, err := pipeline.NewRedisDeduper(rdb, cfg.Pipeline.DedupTTL)
		if err != nil {
			return nil, fmt.Errorf("deduper: %w", err)
		}
		opts = append(opts, pipeline.WithDeduper(dedup))
	}

	if live {
		adapters, err := providerOptions(cfg, ratelimit.NewRegistry(rdb))
		if err != nil {
			return nil, err
		}
		opts = append(opts, adapters...)
	}

	return pipeline.New(cfg.Pipeline, st, opts...), nil
}

// providerOptions builds the configured adapters. Poll adapters draw every
// request from a per-key rate limiter and sit behind a circuit breaker.
func providerOptions(cfg *config.Config, limiters *ratelimit.Registry) ([]pipeline.Option, error) {
	var opts []pipeline.Option
	p := cfg.Providers

	limiter := func(name, key string, maxCalls int, period time.Duration) (provider.Option, error) {
		l, err := limiters.For(name+":"+utils.HashString(key), maxCalls, period)
		if err != nil {
			return nil, fmt.Errorf("%s rate limiter: %w", name, err)
		}
		return provider.WithLimiter(l), nil
	}

	if p.Digitraffic.Enabled {
		l, err := limiter(provider.DigitrafficName, p.Digitraffic.User, p.Digitraffic.MaxCalls, p.Digitraffic.Period)
		if err != nil {
			return nil, err
		}
		a := provider.NewDigitrafficClient(p.Digitraffic.URL, p.Digitraffic.User, provider.WithTimeout(p.HTTPTimeout), l)
		opts = append(opts, pipeline.WithPollAdapter(provider.NewBreaker(a, provider.DefaultBreakerSettings())))
	}

	if p.VesselAPI.URL != "" {
		l, err := limiter(provider.VesselAPIName, p.VesselAPI.Key, p.VesselAPI.MaxCalls, p.VesselAPI.Period)
		if err != nil {
			return nil, err
		}
		a := provider.NewVesselAPIClient(p.VesselAPI.URL, p.VesselAPI.Key, provider.WithTimeout(p.HTTPTimeout), l)
		opts = append(opts, pipeline.WithPollAdapter(provider.NewBreaker(a, provider.DefaultBreakerSettings())))
	}

	if p.AISStream.Key != "" {
		bbox, err := provider.ParseBoundingBox(p.AISStream.BBox)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithStreamAdapter(provider.NewAISStreamClient(p.AISStream.URL, p.AISStream.Key), bbox))
	}

	if len(opts) == 0 {
		logger.Warn("No providers configured; only replayed reports will be ingested")
	}
	return opts, nil
}
