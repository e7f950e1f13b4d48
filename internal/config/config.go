package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"document-generator-service/pkg/logging"
)

const (
	DefaultServerAddr       = ":8080"
	DefaultKafkaBrokers     = "localhost:9092"
	DefaultGenerationTopic  = "document_generation_requests"
	DefaultResultTopic      = "document_generation_results"
	DefaultWorkerGroupID    = "document-worker-group"
	DefaultResultGroupID    = "document-manager-results-group"
	DefaultOutputDir        = "documentos_generados"
	DefaultRefreshInterval  = 30 * time.Second
	DefaultWorkerRatePerSec = 5
	DispatchModeKafka       = "kafka"
	DispatchModeLocal       = "local"
	defaultDispatchMode     = DispatchModeLocal
	defaultDatabaseType     = "sqlite"
	defaultDatabaseLogLevel = "warn"
)

// Config keeps runtime settings for both binaries.
type Config struct {
	ServerAddr string          `yaml:"server_addr"`
	Database   DatabaseConfig  `yaml:"database"`
	Kafka      KafkaConfig     `yaml:"kafka"`
	Scheduler  SchedulerConfig `yaml:"scheduler"`
	Output     OutputConfig    `yaml:"output"`
	Worker     WorkerConfig    `yaml:"worker"`
	Log        logging.Config  `yaml:"log"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	DSN      string `yaml:"dsn"`
	LogLevel string `yaml:"log_level"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	GenerationTopic string   `yaml:"generation_topic"`
	ResultTopic     string   `yaml:"result_topic"`
	WorkerGroupID   string   `yaml:"worker_group_id"`
	ResultGroupID   string   `yaml:"result_group_id"`
}

type SchedulerConfig struct {
	// DispatchMode is "local" (run the generation job in-process) or "kafka".
	DispatchMode    string        `yaml:"dispatch_mode"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
}

type WorkerConfig struct {
	RatePerSec int `yaml:"rate_per_sec"`
}

// Load reads the optional YAML file named by CONFIG_FILE and then applies
// environment overrides and defaults.
func Load() (Config, error) {
	var cfg Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %q: %w", path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return cfg, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}
	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

// Parse decodes a YAML document into a Config without applying defaults.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.Scheduler.DispatchMode {
	case DispatchModeKafka, DispatchModeLocal:
	default:
		return fmt.Errorf("unknown dispatch mode %q", c.Scheduler.DispatchMode)
	}
	if c.Scheduler.RefreshInterval <= 0 {
		return fmt.Errorf("scheduler refresh interval must be positive")
	}
	if c.Scheduler.DispatchMode == DispatchModeKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka dispatch mode requires at least one broker")
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("SERVER_ADDR", &cfg.ServerAddr)
	str("DB_TYPE", &cfg.Database.Type)
	str("DB_DSN", &cfg.Database.DSN)
	str("DB_LOG_LEVEL", &cfg.Database.LogLevel)
	if v := strings.TrimSpace(getenv("KAFKA_BROKERS")); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	str("GENERATION_TOPIC", &cfg.Kafka.GenerationTopic)
	str("RESULT_TOPIC", &cfg.Kafka.ResultTopic)
	str("GROUP_ID", &cfg.Kafka.WorkerGroupID)
	str("RESULT_GROUP_ID", &cfg.Kafka.ResultGroupID)
	str("DISPATCH_MODE", &cfg.Scheduler.DispatchMode)
	if v := strings.TrimSpace(getenv("SCHEDULER_REFRESH_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.RefreshInterval = d
		}
	}
	str("OUTPUT_DIR", &cfg.Output.Dir)
	str("S3_BUCKET", &cfg.Output.S3Bucket)
	str("S3_PREFIX", &cfg.Output.S3Prefix)
	if v := strings.TrimSpace(getenv("WORKER_RATE_PER_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.RatePerSec = n
		}
	}
	str("LOG_LEVEL", &cfg.Log.Level)
	if v := strings.TrimSpace(getenv("LOG_CONSOLE")); v != "" {
		cfg.Log.Console, _ = strconv.ParseBool(v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = DefaultServerAddr
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = defaultDatabaseType
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = defaultDatabaseLogLevel
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBrokers}
	}
	if cfg.Kafka.GenerationTopic == "" {
		cfg.Kafka.GenerationTopic = DefaultGenerationTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultResultTopic
	}
	if cfg.Kafka.WorkerGroupID == "" {
		cfg.Kafka.WorkerGroupID = DefaultWorkerGroupID
	}
	if cfg.Kafka.ResultGroupID == "" {
		cfg.Kafka.ResultGroupID = DefaultResultGroupID
	}
	if cfg.Scheduler.DispatchMode == "" {
		cfg.Scheduler.DispatchMode = defaultDispatchMode
	}
	if cfg.Scheduler.RefreshInterval == 0 {
		cfg.Scheduler.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	if cfg.Worker.RatePerSec <= 0 {
		cfg.Worker.RatePerSec = DefaultWorkerRatePerSec
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
