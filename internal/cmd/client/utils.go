package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	transports "github.com/gemdrive/gemdrive/internal/cmd/client/transports"
	"github.com/gemdrive/gemdrive/internal/eventlog"
)

const (
	defaultHTTPURL  = "http://127.0.0.1:5757"
	defaultGRPCAddr = "127.0.0.1:5758"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// BaseURLFromEnv returns GEMDRIVE_URL or the local default.
func BaseURLFromEnv() string {
	if v := os.Getenv("GEMDRIVE_URL"); v != "" {
		return v
	}
	return defaultHTTPURL
}

// grpcAddrFromEnv returns the gRPC server address from GEMDRIVE_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("GEMDRIVE_GRPC"); addr != "" {
		return addr
	}
	return defaultGRPCAddr
}

func tokenFromEnv() string { return os.Getenv("GEMDRIVE_TOKEN") }

// parseSince accepts unix milliseconds or RFC3339(Nano). Empty returns nil.
func parseSince(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("invalid --since %q; expected ms or RFC3339", s)
	}
	return &t, nil
}

func newFeedTransport(kind, baseURL, token string) (transports.FeedTransport, error) {
	switch kind {
	case "", "http":
		return transports.NewHTTPTransport(baseURL, token), nil
	case "grpc":
		return transports.NewGrpcTransport(grpcAddrFromEnv(), token), nil
	default:
		return nil, fmt.Errorf("invalid --transport %q; use http|grpc", kind)
	}
}

// eventPrinter writes one JSON object per line.
func eventPrinter(w io.Writer) func(eventlog.Event) error {
	enc := json.NewEncoder(w)
	return func(ev eventlog.Event) error { return enc.Encode(ev) }
}
