package app

import (
	"context"
	"crypto/tls"
	"expvar"
	"flag"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/spacenexus/spacetoken-server/pkg/grpc/metrics"
	metrics_util "github.com/spacenexus/spacetoken-server/pkg/metrics"
	"github.com/spacenexus/spacetoken-server/pkg/osutil"
)

// App is a long lived application served over HTTP and, optionally, gRPC.
//
// Init runs before any server accepts traffic, and Stop runs after every
// server has stopped.
type App interface {
	// Init blocks until the application is ready to receive requests.
	Init(config Config, metricsProvider *newrelic.Application) error

	RegisterWithGRPC(server *grpc.Server)

	RegisterWithHTTP(router chi.Router)

	// ShutdownChan is closed when the application wants the process to exit.
	ShutdownChan() <-chan struct{}

	// Stop releases application resources. It must be idempotent.
	Stop()
}

var (
	configPath = flag.String("config", "config.yaml", "configuration file path")

	osSigCh = make(chan os.Signal, 1)
)

const debugServerRetryInterval = 5 * time.Second

func init() {
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}

// Run loads configuration, initializes app, and serves it until the process
// is signalled or something shuts down. Run returns once app has stopped.
func Run(app App, options ...Option) error {
	flag.Parse()

	logger := logrus.StandardLogger().WithField("type", "grpc/app")

	config, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	var metricsProvider *newrelic.Application
	if len(config.NewRelicLicenseKey) > 0 {
		metricsProvider, err = newrelic.NewApplication(
			newrelic.ConfigFromEnvironment(),
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			return errors.Wrap(err, "error connecting to new relic")
		}
	}

	configureLogger(config, metricsProvider)

	// pprof and expvar register on the default mux at import. Only the debug
	// listener may expose them.
	http.DefaultServeMux = http.NewServeMux()
	if config.EnableExpvar || config.EnablePprof {
		go serveDebug(config, logger)
	}

	ballast := make([]byte, ballastSize(config, osutil.GetTotalMemory()))

	memoryLeakShutdownCh := make(chan struct{})
	if config.EnableMemoryLeakCron {
		scheduler := cron.New(cron.WithLocation(time.Local))
		if _, err := scheduler.AddFunc(config.MemoryLeakCronSchedule, func() { close(memoryLeakShutdownCh) }); err != nil {
			return errors.Wrap(err, "failed to initialize memory leak cron")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	o := opts{
		// Metrics come first so they observe every call.
		unaryServerInterceptors:  []grpc.UnaryServerInterceptor{metrics.CustomNewRelicUnaryServerInterceptor(metricsProvider)},
		streamServerInterceptors: []grpc.StreamServerInterceptor{metrics.CustomNewRelicStreamServerInterceptor(metricsProvider)},
	}
	for _, option := range options {
		option(&o)
	}

	runners, err := listen(config, o)
	if err != nil {
		return err
	}

	if err := app.Init(config.AppConfig, metricsProvider); err != nil {
		for _, r := range runners {
			r.close()
		}
		return errors.Wrap(err, "failed to initialize application")
	}

	router := newRouter(config, metricsProvider, o.httpMiddlewares...)
	app.RegisterWithHTTP(router)
	for _, r := range runners {
		r.register(app, router)
	}

	stoppedCh := make(chan string, len(runners))
	for _, r := range runners {
		go func(r *runner) {
			if err := r.serve(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Errorf("%s stopped serving", r.name)
			}
			stoppedCh <- r.name
		}(r)
	}

	select {
	case <-osSigCh:
		logger.Info("interrupt received, shutting down")
	case name := <-stoppedCh:
		logger.Infof("%s shutdown", name)
	case <-memoryLeakShutdownCh:
		logger.Info("shutdown to deal with memory leak")
	case <-app.ShutdownChan():
		logger.Info("app shutdown")
	}

	shutdownCh := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
		defer cancel()

		for _, r := range runners {
			r.stop(ctx)
		}
		app.Stop()
		close(shutdownCh)
	}()

	select {
	case <-shutdownCh:
		// Keeps the ballast reachable until exit.
		if len(ballast) > 0 {
			ballast[0] = 1
		}
		return nil
	case <-time.After(config.ShutdownGracePeriod):
		return errors.Errorf("failed to stop the application within %v", config.ShutdownGracePeriod)
	}
}

// loadConfig reads the optional config file at path, then environment
// overrides, over defaultConfig.
func loadConfig(path string) (BaseConfig, error) {
	// viper only reports ConfigFileNotFoundError when searching for a default
	// file, so an explicit path is checked here.
	if _, err := os.Stat(path); err == nil {
		viper.SetConfigFile(path)
	} else if !os.IsNotExist(err) {
		return BaseConfig{}, errors.Wrap(err, "failed to check if config exists")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return BaseConfig{}, errors.Wrap(err, "failed to load config")
		}
	}

	config := defaultConfig
	if err := viper.Unmarshal(&config); err != nil {
		return BaseConfig{}, errors.Wrap(err, "failed to unmarshal config")
	}
	return config, config.Validate()
}

func ballastSize(config BaseConfig, totalMemory uint64) uint64 {
	if !config.EnableBallast {
		return 0
	}
	capacity := config.BallastCapacity
	if capacity > maxBallastCapacity {
		capacity = maxBallastCapacity
	}
	return uint64(float64(capacity) * float64(totalMemory))
}

func serveDebug(config BaseConfig, logger *logrus.Entry) {
	mux := http.NewServeMux()
	if config.EnableExpvar {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	if config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	for {
		if err := http.ListenAndServe(config.DebugListenAddress, mux); err != nil {
			logger.WithError(err).Warnf("debug http server failed, retrying in %v", debugServerRetryInterval)
		}
		time.Sleep(debugServerRetryInterval)
	}
}

// runner is one listening server managed by Run.
type runner struct {
	name     string
	register func(app App, router chi.Router)
	serve    func() error
	stop     func(ctx context.Context)
	close    func()
}

// listen binds every configured listener so port conflicts surface before
// the app initializes.
func listen(config BaseConfig, o opts) ([]*runner, error) {
	var runners []*runner
	fail := func(err error) ([]*runner, error) {
		for _, r := range runners {
			r.close()
		}
		return nil, err
	}

	newGRPCServer := func(extra ...grpc.ServerOption) *grpc.Server {
		serverOpts := append([]grpc.ServerOption{
			grpc_middleware.WithUnaryServerChain(o.unaryServerInterceptors...),
			grpc_middleware.WithStreamServerChain(o.streamServerInterceptors...),
		}, extra...)
		server := grpc.NewServer(serverOpts...)
		healthgrpc.RegisterHealthServer(server, health.NewServer())
		return server
	}
	grpcRunner := func(name string, lis net.Listener, server *grpc.Server) *runner {
		return &runner{
			name:     name,
			register: func(app App, _ chi.Router) { app.RegisterWithGRPC(server) },
			serve:    func() error { return server.Serve(lis) },
			stop:     func(context.Context) { server.GracefulStop() },
			close:    func() { lis.Close() },
		}
	}

	if len(config.TLSCertificate) > 0 {
		creds, err := loadTransportCredentials(config)
		if err != nil {
			return fail(err)
		}
		lis, err := net.Listen("tcp", config.ListenAddress)
		if err != nil {
			return fail(errors.Wrapf(err, "failed to listen on %s", config.ListenAddress))
		}
		runners = append(runners, grpcRunner("secure grpc server", lis, newGRPCServer(grpc.Creds(creds))))
	}

	lis, err := net.Listen("tcp", config.InsecureListenAddress)
	if err != nil {
		return fail(errors.Wrapf(err, "failed to listen on %s", config.InsecureListenAddress))
	}
	runners = append(runners, grpcRunner("insecure grpc server", lis, newGRPCServer()))

	webLis, err := net.Listen("tcp", config.WebListenAddress)
	if err != nil {
		return fail(errors.Wrapf(err, "failed to listen on %s", config.WebListenAddress))
	}
	webServer := &http.Server{ReadHeaderTimeout: 10 * time.Second}
	runners = append(runners, &runner{
		name:     "web server",
		register: func(_ App, router chi.Router) { webServer.Handler = router },
		serve:    func() error { return webServer.Serve(webLis) },
		stop: func(ctx context.Context) {
			if err := webServer.Shutdown(ctx); err != nil {
				logrus.WithError(err).Warn("failed to gracefully stop web server")
			}
		},
		close: func() { webLis.Close() },
	})

	return runners, nil
}

func loadTransportCredentials(config BaseConfig) (credentials.TransportCredentials, error) {
	certBytes, err := LoadFile(config.TLSCertificate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls certificate")
	}
	keyBytes, err := LoadFile(config.TLSKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tls key")
	}
	cert, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		return nil, errors.Wrap(err, "invalid certificate/private key")
	}
	return credentials.NewServerTLSFromCert(&cert), nil
}

func newRouter(config BaseConfig, metricsProvider *newrelic.Application, middlewares ...func(http.Handler) http.Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		metrics.NewRelicHTTPMiddleware(metricsProvider),
	)
	if len(config.CorsAllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: config.CorsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	if len(middlewares) > 0 {
		router.Use(middlewares...)
	}
	return router
}

func configureLogger(config BaseConfig, metricsProvider *newrelic.Application) {
	var formatter logrus.Formatter = &logrus.JSONFormatter{}
	if metricsProvider != nil {
		formatter = metrics_util.NewCustomNewRelicLogFormatter(metricsProvider, formatter)
	}
	logrus.SetFormatter(formatter)

	if level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel)); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	}

	logrus.SetOutput(os.Stdout)
}
