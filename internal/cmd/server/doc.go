// Package serverrun exposes the Run entrypoint the CLI uses to open the
// gemdrive runtime and serve it over HTTP and gRPC until shutdown.
//
// Example:
//
//	cfg := config.Default()
//	config.FromEnv(&cfg)
//	opts := serverrun.Options{DataDir: "./data", HTTPAddr: ":5757", GRPCAddr: ":5758", Fsync: pebblestore.FsyncModeAlways, Config: cfg}
//	_ = serverrun.Run(ctx, opts)
package serverrun
