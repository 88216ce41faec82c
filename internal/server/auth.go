package server

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authHeader = "authorization"

type callerKey struct{}

// Authenticator maps bearer tokens to the addresses that may act through
// them. Callers without a known token can only query.
type Authenticator struct {
	tokens map[string]string
}

func NewAuthenticator(tokens map[string]string) *Authenticator {
	cp := make(map[string]string, len(tokens))
	for tok, addr := range tokens {
		cp[tok] = addr
	}
	return &Authenticator{tokens: cp}
}

// ParseTokens reads "token=address" pairs separated by commas.
func ParseTokens(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tok, addr, ok := strings.Cut(pair, "=")
		tok, addr = strings.TrimSpace(tok), strings.TrimSpace(addr)
		if !ok || tok == "" || addr == "" {
			return nil, fmt.Errorf("malformed api token entry %q", pair)
		}
		if _, dup := out[tok]; dup {
			return nil, fmt.Errorf("duplicate api token for %s", addr)
		}
		out[tok] = addr
	}
	return out, nil
}

// UnaryInterceptor attaches the caller of a valid bearer token to the
// context. A request without credentials passes through anonymous; an
// unknown token is rejected outright.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(authHeader)
		if len(values) == 0 {
			return handler(ctx, req)
		}
		tok, ok := strings.CutPrefix(values[0], "Bearer ")
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "authorization must be a bearer token")
		}
		addr, known := a.tokens[strings.TrimSpace(tok)]
		if !known {
			return nil, status.Error(codes.Unauthenticated, "unknown api token")
		}
		return handler(context.WithValue(ctx, callerKey{}, addr), req)
	}
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(callerKey{}).(string)
	return addr, ok && addr != ""
}

// BearerToken attaches token to every call made through a client connection.
type BearerToken string

func (t BearerToken) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{authHeader: "Bearer " + string(t)}, nil
}

// RequireTransportSecurity is false so tokens also work over plaintext links.
func (t BearerToken) RequireTransportSecurity() bool {
	return false
}
