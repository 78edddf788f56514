package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestOptions(t *testing.T) {
	unary := func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		return handler(ctx, req)
	}
	stream := func(srv interface{}, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, ss)
	}
	passthrough := func(next http.Handler) http.Handler { return next }

	var o opts
	for _, option := range []Option{
		WithUnaryServerInterceptor(unary),
		WithStreamServerInterceptor(stream),
		WithHTTPMiddleware(passthrough, passthrough),
	} {
		option(&o)
	}

	assert.Len(t, o.unaryServerInterceptors, 1)
	assert.Len(t, o.streamServerInterceptors, 1)
	assert.Len(t, o.httpMiddlewares, 2)
}

func TestNewRouter(t *testing.T) {
	tagged := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test", "tagged")
			next.ServeHTTP(w, r)
		})
	}

	conf := defaultConfig
	conf.CorsAllowedOrigins = []string{"https://app.example.com"}

	router := newRouter(conf, nil, tagged)
	router.Route("/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "tagged", rec.Header().Get("X-Test"))
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
	req.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBaseConfig_Validate(t *testing.T) {
	valid := defaultConfig
	valid.AppName = "spacetoken-server"
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(c *BaseConfig){
		"missing app name":    func(c *BaseConfig) { c.AppName = "" },
		"certificate, no key": func(c *BaseConfig) { c.TLSCertificate = "cert.pem" },
		"zero grace period":   func(c *BaseConfig) { c.ShutdownGracePeriod = 0 },
		"negative ballast":    func(c *BaseConfig) { c.BallastCapacity = -0.1 },
		"bad cron expression": func(c *BaseConfig) { c.EnableMemoryLeakCron = true; c.MemoryLeakCronSchedule = "every day" },
	} {
		c := valid
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}

	withCron := valid
	withCron.EnableMemoryLeakCron = true
	assert.NoError(t, withCron.Validate())
}

func TestBallastSize(t *testing.T) {
	conf := defaultConfig
	conf.EnableBallast = false
	assert.Zero(t, ballastSize(conf, 1000))

	conf.EnableBallast = true
	conf.BallastCapacity = 0.25
	assert.EqualValues(t, 250, ballastSize(conf, 1000))

	conf.BallastCapacity = 0.9
	assert.EqualValues(t, 500, ballastSize(conf, 1000))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_name: spacetoken-test
log_level: debug
shutdown_grace_period: 5s
cors_allowed_origins:
  - https://app.example.com
app:
  storage: memory
`), 0o600))

	conf, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "spacetoken-test", conf.AppName)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, 5*time.Second, conf.ShutdownGracePeriod)
	assert.Equal(t, []string{"https://app.example.com"}, conf.CorsAllowedOrigins)
	assert.Equal(t, "memory", conf.AppConfig["storage"])
	assert.Equal(t, defaultConfig.WebListenAddress, conf.WebListenAddress)
}

func TestListen(t *testing.T) {
	conf := defaultConfig
	conf.InsecureListenAddress = "127.0.0.1:0"
	conf.WebListenAddress = "127.0.0.1:0"

	runners, err := listen(conf, opts{})
	require.NoError(t, err)
	require.Len(t, runners, 2)
	assert.Equal(t, "insecure grpc server", runners[0].name)
	assert.Equal(t, "web server", runners[1].name)

	for _, r := range runners {
		r.close()
	}

	conf.TLSCertificate = filepath.Join(t.TempDir(), "missing.pem")
	conf.TLSKey = conf.TLSCertificate
	_, err = listen(conf, opts{})
	assert.Error(t, err)
}
