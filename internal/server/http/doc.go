// Package httpserver serves files, directory listings and the mutation feed
// over HTTP.
//
// Routes:
//
//	GET    /{path}                      read a file
//	POST   /{path}                      write a file (?method=delete deletes)
//	PUT    /{path}                      write a file
//	DELETE /{path}                      delete a file
//	GET    /gemdrive/{dir}/             list a directory
//	GET    /gemdrive/events/            NDJSON feed (?since=, ?filter=)
//	GET    /gemdrive/events/ws          the same feed over WebSocket
//	GET    /gemdrive/events/log         finite backlog (?since=, ?limit=, ?wait_ms=)
//	GET    /gemdrive/healthz            health
//	GET    /metrics                     Prometheus metrics
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{DataDir: "./data", Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	_ = s.ListenAndServe(ctx, ":5757")
package httpserver
