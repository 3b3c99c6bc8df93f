package config

import (
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Local      LocalConfig      `yaml:"local"`
	Remote     RemoteConfig     `yaml:"remote"`
	Auth       AuthConfig       `yaml:"auth"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Sync       SyncConfig       `yaml:"sync"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8080"`
	CORSOrigins     string        `yaml:"cors_origins"     env:"CORS_ORIGINS"            env-default:"http://localhost:5173,http://127.0.0.1:5173"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	TickInterval    time.Duration `yaml:"tick_interval"    env:"TIMER_TICK_INTERVAL"     env-default:"1s"`
}

// LocalConfig points at the on-device SQLite store.
type LocalConfig struct {
	DBPath string `yaml:"db_path" env:"DB_PATH" env-default:"./data/workingonit.db"`
	// MigrationsDir overrides the embedded SQLite migrations when set.
	MigrationsDir string `yaml:"migrations_dir" env:"MIGRATIONS_DIR"`
}

// RemoteConfig holds the Postgres mirror settings. An empty DSN disables
// remote sync; changes then stay in the local queue.
type RemoteConfig struct {
	DSN             string        `yaml:"dsn"                env:"REMOTE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"REMOTE_MAX_CONNS"          env-default:"5"`
	MinConns        int32         `yaml:"min_conns"          env:"REMOTE_MIN_CONNS"          env-default:"0"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"REMOTE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"REMOTE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	AutoMigrate     bool          `yaml:"auto_migrate"       env:"REMOTE_AUTO_MIGRATE"       env-default:"false"`
	// ConnectTimeout bounds the startup ping and migration attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"REMOTE_CONNECT_TIMEOUT" env-default:"5s"`
	// RetryInterval is how often an unreachable remote is tried again.
	RetryInterval time.Duration `yaml:"retry_interval" env:"REMOTE_RETRY_INTERVAL" env-default:"30s"`
}

func (c RemoteConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"change-this-secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"  env:"TOKEN_TTL"  env-default:"72h"`
}

// ClassifierConfig configures the AI fallback. Without an API key only the
// keyword table is used.
type ClassifierConfig struct {
	AnthropicAPIKey string        `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	Model           string        `yaml:"model"             env:"CLASSIFIER_MODEL"   env-default:"claude-3-5-haiku-latest"`
	Timeout         time.Duration `yaml:"timeout"           env:"CLASSIFIER_TIMEOUT" env-default:"5s"`
	BaseURL         string        `yaml:"base_url"          env:"CLASSIFIER_BASE_URL"`
}

func (c ClassifierConfig) AIEnabled() bool {
	return strings.TrimSpace(c.AnthropicAPIKey) != ""
}

type SyncConfig struct {
	RemoteTimeout time.Duration `yaml:"remote_timeout" env:"SYNC_REMOTE_TIMEOUT" env-default:"10s"`
	WorkerBuffer  int           `yaml:"worker_buffer"  env:"SYNC_WORKER_BUFFER"  env-default:"64"`
	// StartOnline is the connectivity state assumed before the client
	// reports one.
	StartOnline bool `yaml:"start_online" env:"SYNC_START_ONLINE" env-default:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Origins splits the comma separated CORS origin list.
func (c ServerConfig) Origins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
