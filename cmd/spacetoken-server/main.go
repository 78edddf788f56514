package main

import (
	"time"

	"github.com/go-chi/chi/v5/middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/sirupsen/logrus"

	"github.com/spacenexus/spacetoken-server/pkg/grpc/app"
	"github.com/spacenexus/spacetoken-server/pkg/server"
)

const webRequestTimeout = 30 * time.Second

func main() {
	err := app.Run(
		server.NewApp(),
		app.WithUnaryServerInterceptor(grpc_recovery.UnaryServerInterceptor()),
		app.WithStreamServerInterceptor(grpc_recovery.StreamServerInterceptor()),
		app.WithHTTPMiddleware(middleware.Timeout(webRequestTimeout)),
	)
	if err != nil {
		logrus.WithError(err).Fatal("error running spacetoken server")
	}
}
