// Package runtime wires storage, the mutation log, the subscription registry
// and the services built on them into a single-node gemdrive instance. It
// exposes Open/Close, health checks and accessors used by the transports.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(ctx, runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
//	ev, _ := rt.Pipeline().Write(ctx, "/notes.txt", "u1", strings.NewReader("hello"))
package runtime
