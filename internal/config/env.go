package config

import (
	"os"
	"strconv"
)

// FromEnv overlays GEMDRIVE_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("GEMDRIVE_FILES_DIR"); v != "" {
		cfg.FilesDir = v
	}
	if v := os.Getenv("GEMDRIVE_LOG_BACKEND"); v != "" {
		cfg.LogBackend = v
	}
	if v := os.Getenv("GEMDRIVE_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("GEMDRIVE_SAMPLE_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SampleMaxBytes = n
		}
	}
	if v := os.Getenv("GEMDRIVE_SUB_BUF"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Subscribers.Buffer = n
		}
	}
	if v := os.Getenv("GEMDRIVE_SUB_SEND_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Subscribers.SendTimeoutMs = n
		}
	}
	if v := os.Getenv("GEMDRIVE_SUB_FLUSH_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Subscribers.FlushMs = n
		}
	}
	if v := os.Getenv("GEMDRIVE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("GEMDRIVE_AUTH_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("GEMDRIVE_AUTH_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}
	if v := os.Getenv("GEMDRIVE_AUTH_ALLOW_QUERY_TOKEN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.AllowQueryToken = b
		}
	}
	if v := os.Getenv("GEMDRIVE_CORS_ORIGIN"); v != "" {
		cfg.CORSOrigin = v
	}
	if v := os.Getenv("GEMDRIVE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GEMDRIVE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
