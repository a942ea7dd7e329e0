// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/gemdrive/gemdrive/internal/eventlog"
	grpcserver "github.com/gemdrive/gemdrive/internal/server/grpc"
	feedsvc "github.com/gemdrive/gemdrive/internal/services/feed"
)

// GrpcTransport implements FeedTransport over gemdrive.v1.Feed.
type GrpcTransport struct {
	addr  string
	token string
	opts  []grpc.DialOption
}

// NewGrpcTransport constructs a GrpcTransport. Extra dial options are
// appended after the insecure transport credentials.
func NewGrpcTransport(addr, token string, opts ...grpc.DialOption) *GrpcTransport {
	return &GrpcTransport{addr: addr, token: token, opts: opts}
}

// Tail streams the feed and maps terminal statuses to TerminalError.
func (t *GrpcTransport) Tail(ctx context.Context, req TailRequest, onEvent func(eventlog.Event) error) error {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, t.opts...)
	conn, err := grpc.NewClient(t.addr, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	greq := &grpcserver.SubscribeRequest{Filter: req.Filter}
	if req.Since != nil {
		greq.Since = req.Since.UTC().Format(time.RFC3339Nano)
	}
	stream, err := grpcserver.NewFeedClient(conn).Subscribe(ctx, greq, grpc.PerRPCCredentials(grpcserver.BearerCredentials(t.token)))
	if err != nil {
		return mapStatus(err)
	}
	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return mapStatus(err)
		}
		if err := onEvent(ev); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

func mapStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.Canceled:
		return nil
	case codes.ResourceExhausted, codes.Unavailable, codes.Internal:
		switch st.Message() {
		case feedsvc.ErrorTooSlow, feedsvc.ErrorShutdown, feedsvc.ErrorReplayFailed:
			return &TerminalError{Code: st.Message()}
		}
	}
	return err
}
