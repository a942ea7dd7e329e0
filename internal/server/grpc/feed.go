package grpcserver

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/registry"
	feedsvc "github.com/gemdrive/gemdrive/internal/services/feed"
)

const (
	feedServiceName     = "gemdrive.v1.Feed"
	feedSubscribeMethod = "/" + feedServiceName + "/Subscribe"
)

// SubscribeRequest starts a feed subscription. Since is RFC3339Nano; empty
// means live events only.
type SubscribeRequest struct {
	Since  string `json:"since,omitempty"`
	Filter string `json:"filter,omitempty"`
}

type feedServer interface {
	Subscribe(*SubscribeRequest, grpc.ServerStream) error
}

var feedServiceDesc = grpc.ServiceDesc{
	ServiceName: feedServiceName,
	HandlerType: (*feedServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Subscribe",
		Handler:       subscribeHandler,
		ServerStreams: true,
	}},
	Metadata: "gemdrive/v1/feed",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(SubscribeRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(feedServer).Subscribe(req, stream)
}

type feedSvc struct {
	svc *feedsvc.Service
}

// grpcSink forwards events only; terminal frames become the stream status.
type grpcSink struct {
	stream grpc.ServerStream
}

func (g grpcSink) Send(f feedsvc.Frame) error {
	if f.Event == nil {
		return nil
	}
	return g.stream.SendMsg(f.Event)
}
func (g grpcSink) Context() context.Context { return g.stream.Context() }
func (g grpcSink) Flush() error             { return nil }

func (s *feedSvc) Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error {
	opts := feedsvc.SubscribeOptions{Filter: req.Filter}
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339Nano, req.Since)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "since: %v", err)
		}
		opts.Since = &t
	}
	return toStatus(s.svc.Subscribe(opts, grpcSink{stream: stream}))
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, feedsvc.ErrInvalidFilter):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, registry.ErrSlowSubscriber):
		return status.Error(codes.ResourceExhausted, feedsvc.ErrorTooSlow)
	case errors.Is(err, registry.ErrClosed):
		return status.Error(codes.Unavailable, feedsvc.ErrorShutdown)
	case errors.Is(err, feedsvc.ErrReplay):
		return status.Error(codes.Internal, feedsvc.ErrorReplayFailed)
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FeedClient calls gemdrive.v1.Feed.
type FeedClient struct {
	cc grpc.ClientConnInterface
}

func NewFeedClient(cc grpc.ClientConnInterface) *FeedClient { return &FeedClient{cc: cc} }

// FeedStream yields events until the server ends the stream.
type FeedStream struct {
	stream grpc.ClientStream
}

// Subscribe opens a subscription. Per-call credentials go in opts.
func (c *FeedClient) Subscribe(ctx context.Context, req *SubscribeRequest, opts ...grpc.CallOption) (*FeedStream, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &feedServiceDesc.Streams[0], feedSubscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &FeedStream{stream: stream}, nil
}

// Recv returns the next event, or io.EOF / a status error at the end.
func (s *FeedStream) Recv() (eventlog.Event, error) {
	var ev eventlog.Event
	err := s.stream.RecvMsg(&ev)
	return ev, err
}
