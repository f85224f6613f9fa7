package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/TourSync/config"
	"github.com/BearBump/TourSync/internal/archive/s3archive"
	"github.com/BearBump/TourSync/internal/broker/kafka"
	"github.com/BearBump/TourSync/internal/cache/rediscache"
	"github.com/BearBump/TourSync/internal/integrations/logistics"
	"github.com/BearBump/TourSync/internal/integrations/logistics/fake"
	"github.com/BearBump/TourSync/internal/integrations/logistics/taskshttp"
	"github.com/BearBump/TourSync/internal/services/poller"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

const defaultBackfillCron = "0 */6 * * *"

type workerFactories struct {
	newProducer        func(cfg *config.Config) (poller.Producer, func())
	newRateLimiter     func(cfg *config.Config) (poller.RateLimiter, func())
	newLogisticsClient func(cfg *config.Config) logistics.Client
	// newArchive возвращает nil, если архив не настроен.
	newArchive func(ctx context.Context, cfg *config.Config) (poller.Archiver, error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newProducer: func(cfg *config.Config) (poller.Producer, func()) {
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
		newRateLimiter: func(cfg *config.Config) (poller.RateLimiter, func()) {
			rl := rediscache.NewRateLimiter(cfg.Redis.Addr())
			return rl, func() { _ = rl.Close() }
		},
		newLogisticsClient: func(cfg *config.Config) logistics.Client {
			// Без base_url работаем на локальном fake.
			if cfg.TourSync.SourceBaseURL == "" {
				return fake.New()
			}
			timeout := time.Duration(cfg.TourSync.SourceTimeoutSeconds) * time.Second
			return taskshttp.New(cfg.TourSync.SourceBaseURL, cfg.TourSync.SourceAPIKey, timeout)
		},
		newArchive: func(ctx context.Context, cfg *config.Config) (poller.Archiver, error) {
			if !cfg.Archive.Enabled() {
				return nil, nil
			}
			a, err := s3archive.New(ctx, s3archive.Config{
				Bucket:          cfg.Archive.Bucket,
				Region:          cfg.Archive.Region,
				AccessKeyID:     cfg.Archive.AccessKeyID,
				SecretAccessKey: cfg.Archive.SecretAccessKey,
				Endpoint:        cfg.Archive.Endpoint,
				Prefix:          cfg.Archive.Prefix,
			})
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	}
}

func plannerConfig(cfg *config.Config) (poller.PlannerConfig, error) {
	tc := cfg.TourSync
	pc := poller.PlannerConfig{
		LookbackDays: tc.WorkerLookbackDays,
		Backoff1:     time.Duration(tc.WorkerBackoff1Seconds) * time.Second,
		Backoff2:     time.Duration(tc.WorkerBackoff2Seconds) * time.Second,
		Backoff3:     time.Duration(tc.WorkerBackoff3Seconds) * time.Second,
		Backoff4:     time.Duration(tc.WorkerBackoff4Seconds) * time.Second,
		MaxJitter:    time.Duration(tc.WorkerMaxJitterSeconds) * time.Second,
	}
	if tc.WorkerTimezone != "" {
		loc, err := time.LoadLocation(tc.WorkerTimezone)
		if err != nil {
			return pc, errors.Wrapf(err, "load timezone %q", tc.WorkerTimezone)
		}
		pc.Location = loc
	}
	return pc, nil
}

// newPoller собирает poller из фабрик; closeFn закрывает созданные клиенты.
func newPoller(ctx context.Context, cfg *config.Config, f workerFactories) (*poller.Poller, func(), error) {
	topic := cfg.Kafka.SnapshotPageTopicName
	if topic == "" {
		topic = "tasks.snapshot"
	}
	pollInterval := time.Duration(cfg.TourSync.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}

	pc, err := plannerConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	archive, err := f.newArchive(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	producer, closeProducer := f.newProducer(cfg)
	rl, closeRL := f.newRateLimiter(cfg)
	closeFn := func() {
		if closeRL != nil {
			closeRL()
		}
		if closeProducer != nil {
			closeProducer()
		}
	}

	p := poller.New(f.newLogisticsClient(cfg), producer, rl, topic).
		WithSettings(pollInterval, cfg.TourSync.WorkerPageSize, cfg.TourSync.WorkerConcurrency, int64(cfg.TourSync.WorkerRateLimitPerMinute)).
		WithPlanner(pc)
	if archive != nil {
		p = p.WithArchive(archive)
	}
	return p, closeFn, nil
}

// startBackfillCron планирует перечитывание look-back окна по cron-расписанию.
func startBackfillCron(cfg *config.Config, p *poller.Poller) (*cron.Cron, error) {
	spec := cfg.TourSync.WorkerBackfillCron
	if spec == "" {
		spec = defaultBackfillCron
	}
	pc, err := plannerConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts := []cron.Option{}
	if pc.Location != nil {
		opts = append(opts, cron.WithLocation(pc.Location))
	}
	c := cron.New(opts...)
	if _, err := c.AddFunc(spec, p.TriggerBackfill); err != nil {
		return nil, errors.Wrapf(err, "backfill cron %q", spec)
	}
	c.Start()
	slog.Info("backfill scheduled", "cron", spec)
	return c, nil
}

func RunTourWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts *workerHTTPOpts) error {
	p, closeFn, err := newPoller(ctx, cfg, f)
	if err != nil {
		return err
	}
	defer closeFn()

	c, err := startBackfillCron(cfg, p)
	if err != nil {
		return err
	}
	defer c.Stop()

	if httpOpts != nil {
		httpOpts.poller = p
		httpOpts.cfg = cfg
		go func() {
			if err := runWorkerHTTPServer(ctx, *httpOpts); err != nil && ctx.Err() == nil {
				slog.Error("worker http server", "error", err.Error())
			}
		}()
	}

	// первый цикл сразу подтягивает look-back окно
	p.TriggerBackfill()
	return p.Run(ctx)
}
