package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-shield/internal/ratelimit"
)

// Duration parses yaml strings like "90s" or "5m". yaml.v3 only
// decodes integers into time.Duration, which nobody wants to write in
// nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type MongoConfig struct {
	URI      string   `yaml:"uri"`
	Database string   `yaml:"database"`
	Timeout  Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type QualifierConfig struct {
	RuleFile string `yaml:"rule_file"`
}

type AuditConfig struct {
	SpoolDir   string `yaml:"spool_dir"`
	SpoolMaxMB int64  `yaml:"spool_max_mb"`
}

type CamerasConfig struct {
	StaleAfter      Duration `yaml:"stale_after"`
	MonitorInterval Duration `yaml:"monitor_interval"`
}

type IngestLimitConfig struct {
	Rate   int      `yaml:"rate"`
	Window Duration `yaml:"window"`
}

func (c IngestLimitConfig) LimitConfig() ratelimit.LimitConfig {
	return ratelimit.LimitConfig{Rate: c.Rate, Window: c.Window.Std()}
}

// Config is the station's startup configuration. The yaml file carries
// the defaults; a handful of env vars override the deployment-specific
// endpoints so one image serves every station.
type Config struct {
	StationID string          `yaml:"station_id"`
	Server    ServerConfig    `yaml:"server"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Qualifier QualifierConfig `yaml:"qualifier"`
	Audit     AuditConfig     `yaml:"audit"`
	Cameras   CamerasConfig   `yaml:"cameras"`
	RateLimit struct {
		Ingest IngestLimitConfig `yaml:"ingest"`
	} `yaml:"rate_limit"`
}

func defaults() *Config {
	c := &Config{StationID: "EDGE_01"}
	c.Server.Port = "8080"
	c.Mongo.URI = "mongodb://localhost:27017"
	c.Mongo.Database = "shield"
	c.Mongo.Timeout = Duration(10 * time.Second)
	c.Redis.Addr = "localhost:6379"
	c.NATS.URL = "nats://localhost:4222"
	c.NATS.Subject = "shield.detections.frame"
	c.Qualifier.RuleFile = "config/rule.yaml"
	c.Audit.SpoolDir = "data/audit"
	c.Audit.SpoolMaxMB = 256
	c.Cameras.StaleAfter = Duration(90 * time.Second)
	c.Cameras.MonitorInterval = Duration(30 * time.Second)
	c.RateLimit.Ingest = IngestLimitConfig{Rate: 300, Window: Duration(time.Minute)}
	return c
}

// Load reads the yaml file over the defaults, then applies env
// overrides. A missing file is fine; a malformed one is not.
func Load(path string) (*Config, error) {
	c := defaults()

	raw, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(c)
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("STATION_ID"); v != "" {
		c.StationID = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("MONGO_DB"); v != "" {
		c.Mongo.Database = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}
