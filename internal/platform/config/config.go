package config

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

// Config holds the configuration of both processes. Each process validates the subset it needs.
type Config struct {
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Upstream provider
	APIKey     string `mapstructure:"API_KEY"`
	APIBaseURL string `mapstructure:"API_BASE_URL"`

	// Queue
	NATSUrl           string `mapstructure:"NATS_URL"`
	NATSStream        string `mapstructure:"NATS_STREAM"`
	PubSubProjectID   string `mapstructure:"PUBSUB_PROJECT_ID"`
	PubSubTopicID     string `mapstructure:"PUBSUB_TOPIC_ID"`
	PubSubTopicSchema string `mapstructure:"PUBSUB_TOPIC_SCHEMA"` // base64 Avro schema, detail service only
	PublishMaxPending int    `mapstructure:"PUBLISH_MAX_PENDING"`
	PublishAckTimeout int    `mapstructure:"PUBLISH_ACK_TIMEOUT_SECONDS"`

	// Outcome ledger, optional
	PostgresDSN string `mapstructure:"POSTGRES_DSN"`

	// Bulk exporter
	BucketMountPath string `mapstructure:"BUCKET_MOUNT_PATH"`
	ExportDate      string `mapstructure:"EXPORT_DATE"`
	TaskIndex       string `mapstructure:"CLOUD_RUN_TASK_INDEX"`
	TaskAttempt     string `mapstructure:"CLOUD_RUN_TASK_ATTEMPT"`
	PushgatewayURL  string `mapstructure:"PUSHGATEWAY_URL"`

	// Detail fan-out service
	Port            int    `mapstructure:"PORT"`
	TimeoutSeconds  int    `mapstructure:"CLOUD_RUN_TIMEOUT_SECONDS"`
	APIEndpointList string `mapstructure:"API_ENDPOINT_LIST"` // base64 JSON catalog
	GRPCHealthPort  int    `mapstructure:"GRPC_HEALTH_PORT"`
}

var defaults = map[string]any{
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "json",
	"API_KEY":                     "",
	"API_BASE_URL":                "http://files.tmdb.org",
	"NATS_URL":                    "nats://localhost:4222",
	"NATS_STREAM":                 "",
	"PUBSUB_PROJECT_ID":           "",
	"PUBSUB_TOPIC_ID":             "",
	"PUBSUB_TOPIC_SCHEMA":         "",
	"PUBLISH_MAX_PENDING":         4096,
	"PUBLISH_ACK_TIMEOUT_SECONDS": 60,
	"POSTGRES_DSN":                "",
	"BUCKET_MOUNT_PATH":           "",
	"EXPORT_DATE":                 "",
	"CLOUD_RUN_TASK_INDEX":        "0",
	"CLOUD_RUN_TASK_ATTEMPT":      "0",
	"PUSHGATEWAY_URL":             "",
	"PORT":                        8080,
	"CLOUD_RUN_TIMEOUT_SECONDS":   10,
	"API_ENDPOINT_LIST":           "",
	"GRPC_HEALTH_PORT":            0,
}

// defaultPaths are searched for config.defaults.yaml, relative to the working directory.
var defaultPaths = []string{"./configs", "../configs", "../../configs", "."}

// Load reads config.defaults.yaml (if present) and overlays the environment.
func Load(serviceName string) (*Config, error) {
	return LoadFrom(serviceName, defaultPaths...)
}

// LoadFrom is Load with explicit search paths for the defaults file.
func LoadFrom(serviceName string, paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Deployment environments set bare names (API_KEY); APP_API_KEY is accepted as well.
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, key, "APP_"+key); err != nil {
			return nil, fmt.Errorf("binding env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("%s: config.defaults.yaml not found; using defaults and environment variables.", serviceName)
		} else {
			return nil, core_domain.Wrap(core_domain.ErrConfiguration, "reading config.defaults.yaml", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core_domain.Wrap(core_domain.ErrConfiguration, "decoding configuration", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &cfg, nil
}

// RequestTimeout is the inbound request bound of the detail service.
func (c *Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AckTimeout bounds how long a batch of publishes is drained.
func (c *Config) AckTimeout() time.Duration {
	if c.PublishAckTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.PublishAckTimeout) * time.Second
}

// ServerPort returns the listening port, defaulting to 8080.
func (c *Config) ServerPort() int {
	if c.Port <= 0 {
		return 8080
	}
	return c.Port
}

// ValidateExporter checks the settings the bulk exporter cannot run without.
func (c *Config) ValidateExporter() error {
	return requireSet(map[string]string{
		"API_KEY":           c.APIKey,
		"NATS_URL":          c.NATSUrl,
		"PUBSUB_TOPIC_ID":   c.PubSubTopicID,
		"BUCKET_MOUNT_PATH": c.BucketMountPath,
	})
}

// ValidateFanout checks the settings the detail fan-out service cannot run without.
// The catalog and schema contents are decoded by their owners.
func (c *Config) ValidateFanout() error {
	return requireSet(map[string]string{
		"API_KEY":             c.APIKey,
		"NATS_URL":            c.NATSUrl,
		"PUBSUB_TOPIC_ID":     c.PubSubTopicID,
		"PUBSUB_TOPIC_SCHEMA": c.PubSubTopicSchema,
		"API_ENDPOINT_LIST":   c.APIEndpointList,
	})
}

func requireSet(values map[string]string) error {
	var missing []string
	for key, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return core_domain.Wrap(core_domain.ErrConfiguration, "missing "+strings.Join(missing, ", "), nil)
}
