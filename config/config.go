package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Solver     SolverConfig     `yaml:"solver"`
	Timetable  TimetableConfig  `yaml:"timetable"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Environment     string        `yaml:"environment"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	CacheTTLSeconds int           `yaml:"cache_ttl_seconds"`
	CacheTTL        time.Duration `yaml:"-"`
}

// SolverConfig points at the external room solver and bounds every exchange with it.
type SolverConfig struct {
	Host                 string        `yaml:"host"`
	Port                 int           `yaml:"port"`
	TotalTimeoutSeconds  int           `yaml:"total_timeout_seconds"`
	SocketTimeoutSeconds int           `yaml:"socket_timeout_seconds"`
	ShutdownWaitSeconds  int           `yaml:"shutdown_wait_seconds"`
	QueueCapacity        int           `yaml:"queue_capacity"`
	TotalTimeout         time.Duration `yaml:"-"`
	SocketTimeout        time.Duration `yaml:"-"`
	ShutdownWait         time.Duration `yaml:"-"`
}

// Addr returns the solver's host:port.
func (s SolverConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TimetableConfig describes the fixed daily class grid.
type TimetableConfig struct {
	Timezone      string            `yaml:"timezone"`
	ClassStarts   []string          `yaml:"class_starts"`
	GraceMinutes  int               `yaml:"grace_minutes"`
	DefaultCorpus string            `yaml:"default_corpus"`
	Locations     map[string]string `yaml:"locations"`
}

// Cancel scopes.
const (
	CancelScopeSlot = "slot"
	CancelScopeRoom = "room"
)

// BridgeConfig tunes the bot-facing bridge behaviour.
type BridgeConfig struct {
	CancelScope      string `yaml:"cancel_scope"`
	// CancelTimeStatus restricts slot cancellations to journal rows with this
	// time_status. Zero matches any row.
	CancelTimeStatus int    `yaml:"cancel_time_status"`
}

// Database backends.
const (
	DatabasePostgres = "postgres"
	DatabaseMySQL    = "mysql"
	DatabaseSQLite   = "sqlite"
)

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Backend                string `yaml:"backend"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CacheConfig selects where cached read responses live.
type CacheConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

var defaultClassStarts = []string{"08:00", "09:30", "11:00", "12:40", "14:10", "15:30"}

var defaultLocations = map[string]string{
	"corp_a": "А",
	"corp_b": "Б",
	"corp_d": "Д",
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, as if loaded from an empty file.
func Default() *Config {
	var cfg Config
	if err := cfg.applyDefaults(); err != nil {
		panic(err)
	}
	return &cfg
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "production"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Solver.Host == "" {
		cfg.Solver.Host = "127.0.0.1"
	}
	if cfg.Solver.Port <= 0 {
		cfg.Solver.Port = 5555
	}
	if cfg.Solver.TotalTimeoutSeconds <= 0 {
		cfg.Solver.TotalTimeoutSeconds = 30
	}
	if cfg.Solver.SocketTimeoutSeconds <= 0 {
		cfg.Solver.SocketTimeoutSeconds = 10
	}
	if cfg.Solver.SocketTimeoutSeconds >= cfg.Solver.TotalTimeoutSeconds {
		log.Printf("solver.socket_timeout_seconds (%d) should be shorter than solver.total_timeout_seconds (%d)",
			cfg.Solver.SocketTimeoutSeconds, cfg.Solver.TotalTimeoutSeconds)
	}
	if cfg.Solver.ShutdownWaitSeconds <= 0 {
		cfg.Solver.ShutdownWaitSeconds = 10
	}
	if cfg.Solver.QueueCapacity <= 0 {
		cfg.Solver.QueueCapacity = 1024
	}
	cfg.Solver.TotalTimeout = time.Duration(cfg.Solver.TotalTimeoutSeconds) * time.Second
	cfg.Solver.SocketTimeout = time.Duration(cfg.Solver.SocketTimeoutSeconds) * time.Second
	cfg.Solver.ShutdownWait = time.Duration(cfg.Solver.ShutdownWaitSeconds) * time.Second

	if cfg.Timetable.Timezone == "" {
		cfg.Timetable.Timezone = "Asia/Almaty"
	}
	if _, err := time.LoadLocation(cfg.Timetable.Timezone); err != nil {
		return fmt.Errorf("invalid timetable.timezone %q: %w", cfg.Timetable.Timezone, err)
	}
	if len(cfg.Timetable.ClassStarts) == 0 {
		cfg.Timetable.ClassStarts = append([]string(nil), defaultClassStarts...)
	}
	for _, s := range cfg.Timetable.ClassStarts {
		if _, err := time.Parse("15:04", s); err != nil {
			return fmt.Errorf("invalid timetable.class_starts entry %q: %w", s, err)
		}
	}
	if cfg.Timetable.GraceMinutes <= 0 {
		cfg.Timetable.GraceMinutes = 30
	}
	if cfg.Timetable.DefaultCorpus == "" {
		cfg.Timetable.DefaultCorpus = "Главный"
	}
	if len(cfg.Timetable.Locations) == 0 {
		cfg.Timetable.Locations = make(map[string]string, len(defaultLocations))
		for k, v := range defaultLocations {
			cfg.Timetable.Locations[k] = v
		}
	}

	switch cfg.Bridge.CancelScope {
	case "":
		cfg.Bridge.CancelScope = CancelScopeSlot
	case CancelScopeSlot, CancelScopeRoom:
	default:
		return fmt.Errorf("invalid bridge.cancel_scope %q", cfg.Bridge.CancelScope)
	}
	if cfg.Bridge.CancelTimeStatus < 0 {
		return fmt.Errorf("invalid bridge.cancel_time_status %d", cfg.Bridge.CancelTimeStatus)
	}

	cfg.Database.Backend = strings.ToLower(cfg.Database.Backend)
	switch cfg.Database.Backend {
	case "":
		cfg.Database.Backend = DatabaseSQLite
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
	default:
		return fmt.Errorf("unknown database.backend %q", cfg.Database.Backend)
	}
	if cfg.Database.DSN == "" && cfg.Database.Backend == DatabaseSQLite {
		cfg.Database.DSN = "schedule.db"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}

	switch cfg.Cache.Backend {
	case "":
		cfg.Cache.Backend = CacheMemory
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("unknown cache.backend %q", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == CacheRedis && cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = "localhost:6379"
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "schedule-bridge:cache:"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	return nil
}
