package config

import (
	"os"
	"strconv"
	"time"
)

// DBConfig is the postgres connection and pool.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	// queries slower than this are logged at warn
	SlowQuery time.Duration `yaml:"slow_query"`
}

// MQConfig controls task events. An empty URL disables publishing.
type MQConfig struct {
	URL string `yaml:"url"`
	// postgres only: events go to the outbox table and a dispatcher delivers them
	Outbox bool `yaml:"outbox"`
}

// RedisConfig backs the session registry. An empty Addr keeps sessions in process.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type ServerConfig struct {
	Port         string `yaml:"port"`
	CookieSecure bool   `yaml:"cookie_secure"`
}

// StorageConfig Driver: file | postgres | sqlite
type StorageConfig struct {
	Driver    string `yaml:"driver"`
	DataDir   string `yaml:"data_dir"`
	SQLiteDSN string `yaml:"sqlite_dsn"`
}

type SchedulerConfig struct {
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval"`
}

type OTelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Unparseable values are ignored and the file value is kept.
func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = b
	}
}

func envInt(key string, dst *int) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}

func envDuration(key string, dst *time.Duration) {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		*dst = d
	}
}

func OverrideDBFromEnv(cfg *DBConfig) {
	envString("DB_HOST", &cfg.Host)
	envInt("DB_PORT", &cfg.Port)
	envString("DB_USER", &cfg.User)
	envString("DB_PASSWORD", &cfg.Password)
	envString("DB_NAME", &cfg.Name)
	envString("DB_SSLMODE", &cfg.SSLMode)
}

func OverrideMQFromEnv(cfg *MQConfig) {
	envString("MQ_URL", &cfg.URL)
	envBool("MQ_OUTBOX", &cfg.Outbox)
}

func OverrideRedisFromEnv(cfg *RedisConfig) {
	envString("REDIS_ADDR", &cfg.Addr)
	envString("REDIS_PASSWORD", &cfg.Password)
	envInt("REDIS_DB", &cfg.DB)
}

func OverrideSessionFromEnv(cfg *SessionConfig) {
	envString("SESSION_SECRET", &cfg.Secret)
	envDuration("SESSION_TTL", &cfg.TTL)
}

func OverrideServerFromEnv(cfg *ServerConfig) {
	envString("SERVER_PORT", &cfg.Port)
	envBool("COOKIE_SECURE", &cfg.CookieSecure)
}

func OverrideStorageFromEnv(cfg *StorageConfig) {
	envString("STORAGE_DRIVER", &cfg.Driver)
	envString("STORAGE_DATA_DIR", &cfg.DataDir)
	envString("SQLITE_DSN", &cfg.SQLiteDSN)
}

func OverrideOTelFromEnv(cfg *OTelConfig) {
	envBool("OTEL_ENABLED", &cfg.Enabled)
	envString("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Endpoint)
}

// GetConfigEnv returns CONFIG_ENV, defaulting to local.
func GetConfigEnv() string {
	if env := os.Getenv("CONFIG_ENV"); env != "" {
		return env
	}
	return "local"
}
