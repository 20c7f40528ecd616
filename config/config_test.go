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
  trip_updated_topic_name: "trip.updated"
  trip_changed_topic_name: "trip.activities.changed"
redis:
  host: "localhost"
  port: 6379
tripflow:
  http_addr: ":8080"
  kafka_consumer_group: "trip-api"
  kafka_consumer_attempts: 7
  projection_ttl_seconds: 600
  reorder_rate_limit_per_minute: 30
  worker_batch_size: 50
  worker_backoff_jitter_percent: 10
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.ConnString())
	require.Equal(t, "trip.updated", cfg.Kafka.TripUpdatedTopicName)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, ":8080", cfg.TripFlow.HTTPAddr)
	require.Equal(t, 7, cfg.TripFlow.KafkaConsumerAttempts)
	require.Equal(t, 30, cfg.TripFlow.ReorderRateLimitPerMinute)
	require.Equal(t, 50, cfg.TripFlow.WorkerBatchSize)
	require.Equal(t, 10, cfg.TripFlow.WorkerBackoffJitterPercent)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("database: [unterminated"), 0o600))
	_, err = LoadConfig(p)
	require.Error(t, err)
}

func TestDatabaseConfig_ConnStringSSLMode(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Username: "a", Password: "b", DBName: "trips", SSLMode: "require"}
	require.Equal(t, "postgres://a:b@db:5432/trips?sslmode=require", d.ConnString())
}
