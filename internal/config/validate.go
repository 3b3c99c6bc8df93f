package config

import (
	"fmt"
	"strings"
)

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return fmt.Errorf("server.port is required")
	}
	if strings.TrimSpace(c.Local.DBPath) == "" {
		return fmt.Errorf("local.db_path is required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0 (got %s)", c.Auth.TokenTTL)
	}
	if c.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier.timeout must be > 0 (got %s)", c.Classifier.Timeout)
	}
	if c.Sync.RemoteTimeout <= 0 {
		return fmt.Errorf("sync.remote_timeout must be > 0 (got %s)", c.Sync.RemoteTimeout)
	}
	if c.Sync.WorkerBuffer < 1 {
		return fmt.Errorf("sync.worker_buffer must be >= 1 (got %d)", c.Sync.WorkerBuffer)
	}
	if c.Server.TickInterval <= 0 {
		return fmt.Errorf("server.tick_interval must be > 0 (got %s)", c.Server.TickInterval)
	}
	if c.Remote.Enabled() && c.Remote.MinConns > c.Remote.MaxConns {
		return fmt.Errorf("remote.min_conns (%d) must not exceed remote.max_conns (%d)", c.Remote.MinConns, c.Remote.MaxConns)
	}
	if c.Remote.Enabled() && (c.Remote.ConnectTimeout <= 0 || c.Remote.RetryInterval <= 0) {
		return fmt.Errorf("remote.connect_timeout and remote.retry_interval must be > 0")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}
