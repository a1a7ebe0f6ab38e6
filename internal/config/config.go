package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Stream      StreamConfig      `yaml:"stream"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Mining      MiningConfig      `yaml:"mining"`
	Server      ServerConfig      `yaml:"server"`
}

// StreamConfig selects and tunes the event log consumer. Backend is either
// "redis" (Redis Streams consumer group, the default) or "kafka".
type StreamConfig struct {
	Backend      string            `yaml:"backend"`
	Group        string            `yaml:"group"`
	Consumer     string            `yaml:"consumer"`
	BatchCount   int               `yaml:"batch_count"`
	BlockTimeout time.Duration     `yaml:"block_timeout"`
	Redis        RedisStreamConfig `yaml:"redis"`
	Kafka        KafkaConfig       `yaml:"kafka"`
}

type RedisStreamConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	// Pending entries idle longer than this are claimed from their
	// original consumer and redelivered.
	ClaimMinIdle time.Duration `yaml:"claim_min_idle"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ClickHouseConfig struct {
	Addr         string `yaml:"addr"`
	Database     string `yaml:"database"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type AggregationConfig struct {
	// Hour of day (local time) for the scheduled daily run. A pointer so
	// midnight (0) is distinguishable from unset.
	Hour           *int `yaml:"hour"`
	RunOnStart     bool `yaml:"run_on_start"`
	BestSellerTopN int  `yaml:"best_seller_top_n"`
}

// MiningConfig overrides the golden-path engine defaults. Zero values mean
// "use the engine default"; booleans are pointers for the same reason.
type MiningConfig struct {
	Workers              int      `yaml:"workers"`
	SuccessEndpoints     []string `yaml:"success_endpoints"`
	NgramMax             int      `yaml:"ngram_max"`
	MinNgramLength       int      `yaml:"min_ngram_length"`
	MinSupport           int      `yaml:"min_support"`
	MinSupportByItem     int      `yaml:"min_support_by_item"`
	MinDistinctPages     int      `yaml:"min_distinct_pages"`
	RequireContainsAny   []string `yaml:"require_contains_any"`
	DisallowOnlyFrom     []string `yaml:"disallow_only_from"`
	TopK                 int      `yaml:"top_k"`
	ByPurchasedTop       int      `yaml:"by_purchased_top"`
	OnePathPerItem       *bool    `yaml:"one_path_per_item"`
	RequireMenuDetail    *bool    `yaml:"require_menu_detail_in_item_path"`
	EnableRelaxFallback  *bool    `yaml:"enable_relax_fallback"`
	DedupeConsecutive    *bool    `yaml:"dedupe_consecutive"`
	AssumeAllSuccessful  *bool    `yaml:"assume_all_successful"`
	SuccessRateAlwaysOne *bool    `yaml:"success_rate_always_one"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Stream.Backend == "" {
		cfg.Stream.Backend = "redis"
	}
	if cfg.Stream.Backend != "redis" && cfg.Stream.Backend != "kafka" {
		return nil, fmt.Errorf("unknown stream backend %q", cfg.Stream.Backend)
	}
	if cfg.Stream.Group == "" {
		cfg.Stream.Group = "cafesight-workers"
	}
	if cfg.Stream.Consumer == "" {
		host, _ := os.Hostname()
		cfg.Stream.Consumer = fmt.Sprintf("worker-%s-%d", host, os.Getpid())
	}
	if cfg.Stream.BatchCount == 0 {
		cfg.Stream.BatchCount = 100
	}
	if cfg.Stream.BlockTimeout == 0 {
		cfg.Stream.BlockTimeout = 5 * time.Second
	}
	if cfg.Stream.Redis.Stream == "" {
		cfg.Stream.Redis.Stream = "batch_logs_stream"
	}
	if cfg.Stream.Redis.ClaimMinIdle == 0 {
		cfg.Stream.Redis.ClaimMinIdle = time.Minute
	}
	if cfg.Stream.Kafka.Topic == "" {
		cfg.Stream.Kafka.Topic = "cafesight.events.raw"
	}
	if cfg.ClickHouse.MaxOpenConns == 0 {
		cfg.ClickHouse.MaxOpenConns = 10
	}
	if cfg.ClickHouse.MaxIdleConns == 0 {
		cfg.ClickHouse.MaxIdleConns = 5
	}
	if cfg.Aggregation.Hour == nil {
		hour := 3
		cfg.Aggregation.Hour = &hour
	}
	if *cfg.Aggregation.Hour < 0 || *cfg.Aggregation.Hour > 23 {
		return nil, fmt.Errorf("aggregation hour %d out of range [0,23]", *cfg.Aggregation.Hour)
	}
	if cfg.Aggregation.BestSellerTopN == 0 {
		cfg.Aggregation.BestSellerTopN = 5
	}
	if cfg.Mining.Workers == 0 {
		cfg.Mining.Workers = 4
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8086"
	}

	return &cfg, nil
}
