// Package grpcserver hosts the gRPC transport: the gemdrive.v1.Feed
// server-streaming Subscribe method and the standard grpc.health.v1 service.
//
// Feed messages are JSON encoded (content-subtype "json"), so clients call
// with grpc.CallContentSubtype(grpcserver.CodecName); NewFeedClient does that.
//
// Example:
//
//	rt, _ := runtime.Open(ctx, runtime.Options{DataDir: "./data", Config: config.Default()})
//	s := grpcserver.New(rt, logger)
//	_ = s.ListenAndServe(ctx, ":5758")
package grpcserver
