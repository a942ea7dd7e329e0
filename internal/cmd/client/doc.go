// Package client provides the `gemdrive` command-line client.
//
// The CLI talks to the gemdrive HTTP API (and, for tail, optionally the
// gRPC feed) to watch and mirror the mutation feed from a terminal.
//
// # Address configuration
//
// The HTTP base URL comes from a BaseURLFunc supplied by the embedding
// binary; the standalone binary reads GEMDRIVE_URL (default
// http://127.0.0.1:5757). The gRPC address is read from GEMDRIVE_GRPC
// (default 127.0.0.1:5758). Commands that call the server take --token,
// defaulting to GEMDRIVE_TOKEN.
//
// Usage
//
//	gemdrive token --secret s3cret --subject alice
//
//	# live feed, one JSON event per line
//	gemdrive tail
//	gemdrive tail --since 2025-09-20T12:00:00Z --filter 'kind == "write"'
//	gemdrive tail --transport grpc --since 1726833600000 --limit 10
//
//	# finite backlog
//	gemdrive events --since 0 --limit 100
//
//	# keep ./backup in sync; resumes from ./backup/.gemdrive-mirror.json
//	gemdrive mirror --dir ./backup
package client
