package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/TourSync/config"
	"github.com/BearBump/TourSync/internal/broker/kafka"
	"github.com/BearBump/TourSync/internal/cache/rediscache"
	"github.com/BearBump/TourSync/internal/logging"
	"github.com/BearBump/TourSync/internal/services/orders"
	"github.com/BearBump/TourSync/internal/storage/memorders"
	"github.com/BearBump/TourSync/internal/storage/pgorders"
)

type tourAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     tourAPIOpts
	svc      *orders.Service
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapTourAPI() *tourAPIApp {
	config.LoadEnv()

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	app := &tourAPIApp{}
	app.closers = append(app.closers, logging.Setup(cfg.Log, "tour-api"))

	grpcAddr := cfg.TourSync.GRPCAddr
	if grpcAddr == "" {
		grpcAddr = ":50051"
	}
	httpAddr := cfg.TourSync.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.TourSync.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "tour-api"
	}
	topic := cfg.Kafka.SnapshotPageTopicName
	if topic == "" {
		topic = "tasks.snapshot"
	}
	cacheTTL := time.Duration(cfg.TourSync.CurrentStateTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	repo, ready, closeRepo := mustOpenRepository(cfg)
	app.closers = append(app.closers, closeRepo)

	rc := rediscache.New(cfg.Redis.Addr())
	app.closers = append(app.closers, func() { _ = rc.Close() })

	app.svc = orders.New(repo, rc, cacheTTL)
	app.consumer = kafka.NewConsumer(cfg.Kafka.Brokers(), topic, consumerGroup)

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = tourAPIOpts{
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		topic:         topic,
		consumerGroup: consumerGroup,
		jwtSecret:     cfg.Auth.JWTSecret,
		ready: func(ctx context.Context) error {
			if err := ready(ctx); err != nil {
				return err
			}
			return rc.Ping(ctx)
		},
	}
	return app
}

// mustOpenRepository открывает PostgreSQL, либо in-memory хранилище,
// если так указано в конфиге.
func mustOpenRepository(cfg *config.Config) (orders.Repository, func(ctx context.Context) error, func()) {
	if cfg.TourSync.UseMemoryStorage {
		slog.Warn("using in-memory storage, data is lost on restart")
		st := memorders.New()
		return st, func(context.Context) error { return nil }, st.Close
	}
	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	return st, st.Ping, st.Close
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorders.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorders.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *tourAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *tourAPIApp) Run() error {
	return runTourAPI(a.ctx, a.opts, a.svc, a.consumer)
}
