package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/gemdrive/gemdrive/internal/cmd/client"
	serverrun "github.com/gemdrive/gemdrive/internal/cmd/server"
	cfgpkg "github.com/gemdrive/gemdrive/internal/config"
	pebblestore "github.com/gemdrive/gemdrive/internal/storage/pebble"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gemdrive",
		Short:        "gemdrive file store and mutation feed",
		Long:         "gemdrive stores files over HTTP and publishes a replayable feed of every write and delete.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("url", "", "HTTP API base URL (env GEMDRIVE_URL)")
	baseURL := func() string {
		if v, _ := rootCmd.PersistentFlags().GetString("url"); v != "" {
			return v
		}
		return clientcmd.BaseURLFromEnv()
	}

	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(clientcmd.Commands(baseURL)...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "server",
		Short:   "Start the gemdrive server (HTTP and gRPC)",
		Aliases: []string{"serve"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if err := applyFlags(cmd, &cfg); err != nil {
				return err
			}

			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			mode, err := pebblestore.ParseFsyncMode(fsyncMode)
			if err != nil {
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}
			return serverrun.Run(cmd.Context(), serverrun.Options{
				DataDir:       dataDir,
				HTTPAddr:      httpAddr,
				GRPCAddr:      grpcAddr,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:        cfg,
			})
		},
	}
	f := cmd.Flags()
	f.String("config", os.Getenv("GEMDRIVE_CONFIG"), "Config file (JSON or YAML)")
	f.String("data-dir", os.Getenv("GEMDRIVE_DATA_DIR"), "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("http", envOr("GEMDRIVE_HTTP", ":5757"), "HTTP listen address")
	f.String("grpc", envOr("GEMDRIVE_GRPC_LISTEN", ":5758"), "gRPC listen address (empty disables)")
	f.String("fsync", "always", "Fsync mode: always|interval|never")
	f.Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms")
	f.String("files-dir", "", "Directory holding stored files (default <data-dir>/files)")
	f.String("log-backend", "", "Mutation log store: pebble|postgres")
	f.String("postgres-dsn", "", "Postgres DSN when --log-backend=postgres")
	f.Int("sample-max-bytes", -1, "Max bytes of inline content preview on write events (0 disables)")
	f.Int("sub-buf", 0, "Per-subscriber queue length")
	f.Int("sub-send-timeout-ms", -1, "How long a broadcast waits on a full subscriber queue")
	f.Int("sub-flush-ms", -1, "Subscribe flush window in ms (0 flushes every event)")
	f.String("auth-secret", "", "HS256 secret; empty serves every request as the local user")
	f.String("cors-origin", "", "Access-Control-Allow-Origin value")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json")
	return cmd
}

// applyFlags overlays explicitly set flags onto cfg.
func applyFlags(cmd *cobra.Command, cfg *cfgpkg.Config) error {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	str("files-dir", &cfg.FilesDir)
	str("log-backend", &cfg.LogBackend)
	str("postgres-dsn", &cfg.PostgresDSN)
	num("sample-max-bytes", &cfg.SampleMaxBytes)
	num("sub-buf", &cfg.Subscribers.Buffer)
	num("sub-send-timeout-ms", &cfg.Subscribers.SendTimeoutMs)
	num("sub-flush-ms", &cfg.Subscribers.FlushMs)
	str("auth-secret", &cfg.Auth.Secret)
	str("cors-origin", &cfg.CORSOrigin)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	return cfg.Validate()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
