package app

import (
	"net/http"

	"google.golang.org/grpc"
)

// Option configures the servers started by Run.
type Option func(o *opts)

type opts struct {
	unaryServerInterceptors  []grpc.UnaryServerInterceptor
	streamServerInterceptors []grpc.StreamServerInterceptor
	httpMiddlewares          []func(http.Handler) http.Handler
}

// WithUnaryServerInterceptor appends a unary interceptor. Configured
// interceptors run after the defaults, in the order they were added.
func WithUnaryServerInterceptor(interceptor grpc.UnaryServerInterceptor) Option {
	return func(o *opts) {
		o.unaryServerInterceptors = append(o.unaryServerInterceptors, interceptor)
	}
}

// WithStreamServerInterceptor appends a stream interceptor. Configured
// interceptors run after the defaults, in the order they were added.
func WithStreamServerInterceptor(interceptor grpc.StreamServerInterceptor) Option {
	return func(o *opts) {
		o.streamServerInterceptors = append(o.streamServerInterceptors, interceptor)
	}
}

// WithHTTPMiddleware appends middleware to the web router, after request
// tracing and CORS handling.
func WithHTTPMiddleware(middlewares ...func(http.Handler) http.Handler) Option {
	return func(o *opts) {
		o.httpMiddlewares = append(o.httpMiddlewares, middlewares...)
	}
}
