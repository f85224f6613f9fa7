package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	TourSync TourSyncConfig `yaml:"toursync"`
	Auth     AuthConfig     `yaml:"auth"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString собирает DSN для pgx; пустой ssl_mode означает disable.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	SnapshotPageTopicName string `yaml:"snapshot_page_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type TourSyncConfig struct {
	GRPCAddr               string `yaml:"grpc_addr"`
	HTTPAddr               string `yaml:"http_addr"`
	KafkaConsumerGroup     string `yaml:"kafka_consumer_group"`
	CurrentStateTTLSeconds int    `yaml:"current_state_ttl_seconds"`
	// UseMemoryStorage запускает tour-api без PostgreSQL (локальная отладка).
	UseMemoryStorage bool `yaml:"use_memory_storage"`

	WorkerPollIntervalSeconds int    `yaml:"worker_poll_interval_seconds"`
	WorkerPageSize            int    `yaml:"worker_page_size"`
	WorkerConcurrency         int    `yaml:"worker_concurrency"`
	WorkerRateLimitPerMinute  int    `yaml:"worker_rate_limit_per_minute"`
	WorkerLookbackDays        int    `yaml:"worker_lookback_days"`
	WorkerTimezone            string `yaml:"worker_timezone"`
	WorkerBackfillCron        string `yaml:"worker_backfill_cron"`
	WorkerHTTPAddr            string `yaml:"worker_http_addr"`

	// Backoff после неудачных циклов. По умолчанию 5/15/30/60 секунд.
	WorkerBackoff1Seconds  int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds  int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds  int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds  int `yaml:"worker_backoff_4_seconds"`
	WorkerMaxJitterSeconds int `yaml:"worker_max_jitter_seconds"`

	SourceBaseURL        string `yaml:"source_base_url"`
	SourceAPIKey         string `yaml:"source_api_key"`
	SourceTimeoutSeconds int    `yaml:"source_timeout_seconds"`
}

type AuthConfig struct {
	// Пустой секрет отключает проверку токенов на правках.
	JWTSecret string `yaml:"jwt_secret"`
}

type ArchiveConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
	// File включает ротацию через lumberjack вместо stderr.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

// LoadEnv подгружает .env из рабочей директории, если он есть.
// Переменные окружения процесса не перезаписываются.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("no .env file, relying on process environment", "error", err.Error())
	}
}
