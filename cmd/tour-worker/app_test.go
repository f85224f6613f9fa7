package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/TourSync/config"
	"github.com/BearBump/TourSync/internal/archive/s3archive"
	"github.com/BearBump/TourSync/internal/integrations/logistics"
	"github.com/BearBump/TourSync/internal/integrations/logistics/fake"
	"github.com/BearBump/TourSync/internal/integrations/logistics/taskshttp"
	"github.com/BearBump/TourSync/internal/services/poller"
	"github.com/stretchr/testify/require"
)

type noopProducer struct{}

func (p noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

func testFactories(closed *int) workerFactories {
	return workerFactories{
		newProducer: func(cfg *config.Config) (poller.Producer, func()) {
			return noopProducer{}, func() { *closed++ }
		},
		newRateLimiter: func(cfg *config.Config) (poller.RateLimiter, func()) {
			return nil, func() { *closed++ }
		},
		newLogisticsClient: func(cfg *config.Config) logistics.Client {
			return fake.New()
		},
		newArchive: func(ctx context.Context, cfg *config.Config) (poller.Archiver, error) {
			return nil, nil
		},
	}
}

func TestDefaultWorkerFactories_SelectLogisticsClient(t *testing.T) {
	f := defaultWorkerFactories()

	c1 := f.newLogisticsClient(&config.Config{TourSync: config.TourSyncConfig{SourceBaseURL: "http://localhost:9000", SourceAPIKey: "k"}})
	_, ok := c1.(*taskshttp.Client)
	require.True(t, ok)

	c2 := f.newLogisticsClient(&config.Config{})
	_, ok = c2.(*fake.FakeClient)
	require.True(t, ok)
}

func TestDefaultWorkerFactories_Archive(t *testing.T) {
	f := defaultWorkerFactories()

	a, err := f.newArchive(context.Background(), &config.Config{})
	require.NoError(t, err)
	require.Nil(t, a)

	a, err = f.newArchive(context.Background(), &config.Config{Archive: config.ArchiveConfig{
		Bucket: "raw", Region: "us-east-1", Endpoint: "http://minio:9000", AccessKeyID: "a", SecretAccessKey: "s",
	}})
	require.NoError(t, err)
	_, ok := a.(*s3archive.Archive)
	require.True(t, ok)
}

func TestDefaultWorkerFactories_ProducerAndRateLimiter_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	p, closeP := f.newProducer(cfg)
	defer closeP()
	rl, closeRL := f.newRateLimiter(cfg)
	defer closeRL()
	require.NotNil(t, p)
	require.NotNil(t, rl)
}

func TestPlannerConfig(t *testing.T) {
	pc, err := plannerConfig(&config.Config{TourSync: config.TourSyncConfig{
		WorkerTimezone:        "Europe/Berlin",
		WorkerLookbackDays:    4,
		WorkerBackoff1Seconds: 7,
	}})
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", pc.Location.String())
	require.Equal(t, 4, pc.LookbackDays)
	require.Equal(t, 7*time.Second, pc.Backoff1)

	_, err = plannerConfig(&config.Config{TourSync: config.TourSyncConfig{WorkerTimezone: "Mars/Olympus"}})
	require.Error(t, err)
}

func TestStartBackfillCron_InvalidSpec(t *testing.T) {
	p := poller.New(fake.New(), noopProducer{}, nil, "t")
	_, err := startBackfillCron(&config.Config{TourSync: config.TourSyncConfig{WorkerBackfillCron: "not a cron"}}, p)
	require.Error(t, err)

	c, err := startBackfillCron(&config.Config{}, p)
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)
	c.Stop()
}

func TestRunTourWorker_ContextCanceled(t *testing.T) {
	closed := 0
	cfg := &config.Config{
		Kafka:    config.KafkaConfig{SnapshotPageTopicName: "t"},
		TourSync: config.TourSyncConfig{WorkerPollIntervalSeconds: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunTourWorker(ctx, cfg, testFactories(&closed), nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, closed)
}

func TestWorkerRouter(t *testing.T) {
	sw := filepath.Join(t.TempDir(), "worker.swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	p := poller.New(fake.New(), noopProducer{}, nil, "t")
	cfg := &config.Config{
		TourSync: config.TourSyncConfig{WorkerPageSize: 50, SourceAPIKey: "secret"},
	}
	srv := httptest.NewServer(newWorkerRouter(workerHTTPOpts{swaggerPath: sw, poller: p, cfg: cfg}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	var st poller.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	require.False(t, st.StartedAt.IsZero())

	resp, err = http.Get(srv.URL + "/config")
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.EqualValues(t, 50, out["pageSize"])
	require.NotContains(t, out, "sourceAPIKey")

	resp, err = http.Post(srv.URL+"/trigger?scope=backfill", "application/json", nil)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Equal(t, "backfill", out["scope"])
	require.NotNil(t, p.Stats().LastTriggerAt)

	resp, err = http.Get(srv.URL + "/swagger.json")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunWorkerHTTPServer_SwaggerRequired(t *testing.T) {
	require.Error(t, runWorkerHTTPServer(context.Background(), workerHTTPOpts{httpAddr: "127.0.0.1:0"}))
}
