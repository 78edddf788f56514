package metrics

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	grpc_core "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/spacenexus/spacetoken-server/pkg/grpc"
	"github.com/spacenexus/spacetoken-server/pkg/metrics"
)

type statusLevel string

const (
	grpcRequestPackageAttributeKey = "grpc.request.package"
	grpcRequestServiceAttributeKey = "grpc.request.service"
	grpcRequestMethodAttributeKey  = "grpc.request.method"

	grpcResponseStatusCodeAttributeKey      = "grpc.response.statusCode"
	grpcResponseStatusMessageAttributeKey   = "grpc.response.statusMessage"
	grpcResponseStatusCodeLevelAttributeKey = "grpc.response.statusCodeLevel"

	clientUserAgentAttributeKey = "grpc.client.userAgent"

	infoLevel    statusLevel = "info"
	warningLevel statusLevel = "warning"
	errorLevel   statusLevel = "error"
)

// Codes missing from the map are reported at errorLevel.
var statusLevels = map[codes.Code]statusLevel{
	codes.OK:              infoLevel,
	codes.AlreadyExists:   infoLevel,
	codes.Canceled:        infoLevel,
	codes.InvalidArgument: infoLevel,
	codes.NotFound:        infoLevel,
	codes.Unauthenticated: infoLevel,

	codes.Aborted:            warningLevel,
	codes.DeadlineExceeded:   warningLevel,
	codes.FailedPrecondition: warningLevel,
	codes.OutOfRange:         warningLevel,
	codes.PermissionDenied:   warningLevel,
	codes.ResourceExhausted:  warningLevel,
	codes.Unavailable:        warningLevel,
}

func levelForCode(code codes.Code) statusLevel {
	if level, ok := statusLevels[code]; ok {
		return level
	}
	return errorLevel
}

// CustomNewRelicUnaryServerInterceptor is a custom implementation of the New
// Relic unary interceptor. Health checks are not traced.
func CustomNewRelicUnaryServerInterceptor(app *newrelic.Application) grpc_core.UnaryServerInterceptor {
	if app == nil {
		return func(ctx context.Context, req interface{}, info *grpc_core.UnaryServerInfo, handler grpc_core.UnaryHandler) (interface{}, error) {
			return handler(ctx, req)
		}
	}

	return func(ctx context.Context, req interface{}, info *grpc_core.UnaryServerInfo, handler grpc_core.UnaryHandler) (interface{}, error) {
		if grpc.IsHealthCheckEndpoint(info.FullMethod) {
			return handler(ctx, req)
		}

		ctx = metrics.WithApplication(ctx, app)

		m := startTransaction(ctx, app, info.FullMethod)
		defer m.End()

		ctx = newrelic.NewContext(ctx, m)

		includeParsedFullMethodName(m, info.FullMethod)
		includeClientMetadata(ctx, m)

		resp, err := handler(ctx, req)
		includeGRPCStatusCode(m, err)
		return resp, err
	}
}

func CustomNewRelicStreamServerInterceptor(app *newrelic.Application) grpc_core.StreamServerInterceptor {
	if app == nil {
		return func(srv interface{}, ss grpc_core.ServerStream, info *grpc_core.StreamServerInfo, handler grpc_core.StreamHandler) error {
			return handler(srv, ss)
		}
	}

	return func(srv interface{}, ss grpc_core.ServerStream, info *grpc_core.StreamServerInfo, handler grpc_core.StreamHandler) error {
		if grpc.IsHealthCheckEndpoint(info.FullMethod) {
			return handler(srv, ss)
		}

		ctx := metrics.WithApplication(ss.Context(), app)

		m := startTransaction(ctx, app, info.FullMethod)
		defer m.End()

		ctx = newrelic.NewContext(ctx, m)

		includeParsedFullMethodName(m, info.FullMethod)
		includeClientMetadata(ctx, m)

		err := handler(srv, &wrappedStream{ctx, ss})
		includeGRPCStatusCode(m, err)
		return err
	}
}

type wrappedStream struct {
	ctx context.Context
	grpc_core.ServerStream
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

func startTransaction(ctx context.Context, app *newrelic.Application, fullMethod string) *newrelic.Transaction {
	method := strings.TrimPrefix(fullMethod, "/")

	var hdrs http.Header
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		hdrs = make(http.Header, len(md))
		for k, vs := range md {
			for _, v := range vs {
				hdrs.Add(k, v)
			}
		}
	}

	target := hdrs.Get(":authority")
	url := getURL(method, target)

	webReq := newrelic.WebRequest{
		Header:    hdrs,
		URL:       url,
		Method:    method,
		Transport: newrelic.TransportHTTP,
	}
	txn := app.StartTransaction(method)
	txn.SetWebRequest(webReq)

	return txn
}

func getURL(method, target string) *url.URL {
	var host string
	// target can be anything from
	// https://github.com/grpc/grpc/blob/master/doc/naming.md
	if strings.HasPrefix(target, "unix:") {
		host = "localhost"
	} else {
		host = strings.TrimPrefix(target, "dns:///")
	}
	return &url.URL{
		Scheme: "grpc",
		Host:   host,
		Path:   method,
	}
}

func includeGRPCStatusCode(m *newrelic.Transaction, err error) {
	s := status.Convert(err)
	level := levelForCode(s.Code())

	m.SetWebResponse(nil).WriteHeader(http.StatusOK)
	m.AddAttribute(grpcResponseStatusCodeAttributeKey, s.Code().String())
	m.AddAttribute(grpcResponseStatusMessageAttributeKey, s.Message())
	m.AddAttribute(grpcResponseStatusCodeLevelAttributeKey, string(level))

	if level == errorLevel {
		m.NoticeError(&newrelic.Error{
			Message: s.Message(),
			Class:   "gRPC Status: " + s.Code().String(),
		})
	}
}

func includeParsedFullMethodName(m *newrelic.Transaction, fullMethodName string) {
	name, err := grpc.ParseFullMethodName(fullMethodName)
	if err != nil {
		return
	}

	m.AddAttribute(grpcRequestPackageAttributeKey, name.Package)
	m.AddAttribute(grpcRequestServiceAttributeKey, name.Service)
	m.AddAttribute(grpcRequestMethodAttributeKey, name.Method)
}

func includeClientMetadata(ctx context.Context, m *newrelic.Transaction) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return
	}
	if userAgent := md.Get("user-agent"); len(userAgent) > 0 {
		m.AddAttribute(clientUserAgentAttributeKey, userAgent[0])
	}
}
