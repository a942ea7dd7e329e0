package grpcserver

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/gemdrive/gemdrive/internal/auth"
)

// authStream carries the authenticated context.
type authStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s authStream) Context() context.Context { return s.ctx }

// streamAuth authenticates Feed calls from the "authorization" metadata.
// Health checks stay public.
func streamAuth(a auth.Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !strings.HasPrefix(info.FullMethod, "/"+feedServiceName+"/") {
			return handler(srv, ss)
		}
		var token string
		if md, ok := metadata.FromIncomingContext(ss.Context()); ok {
			for _, v := range md.Get("authorization") {
				if tok, ok := auth.BearerToken(v); ok {
					token = tok
					break
				}
			}
		}
		p, err := a.Authenticate(token)
		if err != nil {
			return status.Error(codes.Unauthenticated, "No auth")
		}
		return handler(srv, authStream{ServerStream: ss, ctx: auth.WithPrincipal(ss.Context(), p)})
	}
}

// BearerCredentials attaches a token to every call. Insecure transports are
// allowed since gemdrive is usually reached over localhost or a TLS proxy.
type BearerCredentials string

func (b BearerCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	if b == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + string(b)}, nil
}

func (BearerCredentials) RequireTransportSecurity() bool { return false }
