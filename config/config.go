package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	TripFlow TripFlowConfig `yaml:"tripflow"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString builds the postgres URL; ssl is disabled unless configured.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	TripUpdatedTopicName string `yaml:"trip_updated_topic_name"`
	TripChangedTopicName string `yaml:"trip_changed_topic_name"`
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

type TripFlowConfig struct {
	HTTPAddr                  string `yaml:"http_addr"`
	KafkaConsumerGroup        string `yaml:"kafka_consumer_group"`
	KafkaConsumerAttempts     int    `yaml:"kafka_consumer_attempts"`
	ProjectionTTLSeconds      int    `yaml:"projection_ttl_seconds"`
	ReorderRateLimitPerMinute int    `yaml:"reorder_rate_limit_per_minute"`
	PublishAttempts           int    `yaml:"publish_attempts"`

	WorkerPollIntervalSeconds int `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize           int `yaml:"worker_batch_size"`
	WorkerConcurrency         int `yaml:"worker_concurrency"`
	WorkerLeaseSeconds        int `yaml:"worker_lease_seconds"`
	WorkerRateLimitPerMinute  int `yaml:"worker_rate_limit_per_minute"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	// Retry schedule for failed projections. Defaults: 5/15/30/60 minutes.
	WorkerBackoff1Seconds      int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds      int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds      int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds      int `yaml:"worker_backoff_4_seconds"`
	WorkerBackoffJitterPercent int `yaml:"worker_backoff_jitter_percent"`
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
