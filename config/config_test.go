package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  snapshot_page_topic_name: "tasks.snapshot"
redis:
  host: "localhost"
  port: 6379
toursync:
  grpc_addr: ":50051"
  http_addr: ":8080"
  kafka_consumer_group: "tour-api"
  current_state_ttl_seconds: 600
  worker_backfill_cron: "*/30 * * * *"
  worker_lookback_days: 3
  source_base_url: "http://source:9000"
auth:
  jwt_secret: "s"
archive:
  bucket: "raw-pages"
  region: "eu-central-1"
log:
  level: "debug"
  file: "/var/log/toursync.log"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.ConnString())
	require.Equal(t, "tasks.snapshot", cfg.Kafka.SnapshotPageTopicName)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, ":8080", cfg.TourSync.HTTPAddr)
	require.Equal(t, "*/30 * * * *", cfg.TourSync.WorkerBackfillCron)
	require.Equal(t, 3, cfg.TourSync.WorkerLookbackDays)
	require.Equal(t, "s", cfg.Auth.JWTSecret)
	require.True(t, cfg.Archive.Enabled())
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("database: [oops"), 0o600))
	_, err = LoadConfig(p)
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("TOURSYNC_TEST_CONFIG_PATH=/etc/toursync.yaml\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TOURSYNC_TEST_CONFIG_PATH") })

	LoadEnv(p)
	require.Equal(t, "/etc/toursync.yaml", os.Getenv("TOURSYNC_TEST_CONFIG_PATH"))

	// отсутствующий файл не ошибка
	LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadConfig_Example(t *testing.T) {
	cfg, err := LoadConfig("config.example.yaml")
	require.NoError(t, err)
	require.Equal(t, "tasks.snapshot", cfg.Kafka.SnapshotPageTopicName)
	require.Equal(t, "0 */6 * * *", cfg.TourSync.WorkerBackfillCron)
	require.False(t, cfg.Archive.Enabled())
}
