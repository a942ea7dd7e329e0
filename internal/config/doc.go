// Package config loads gemdrive configuration from JSON or YAML files and
// overlays GEMDRIVE_* environment variables.
//
//	cfg, err := config.Load("/etc/gemdrive.yaml")
//	if err != nil { ... }
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { ... }
package config
