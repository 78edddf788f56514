// Package test runs a disposable postgres container for store integration
// tests.
package test

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/spacenexus/spacetoken-server/pkg/retry"
	"github.com/spacenexus/spacetoken-server/pkg/retry/backoff"
)

const (
	image    = "postgres"
	imageTag = "14.5"

	// Docker kills the container after this long even if the test binary
	// dies without cleaning up.
	containerTTL = 120 * time.Second

	port     = 5432
	user     = "localtest"
	password = "localpassword"
	dbname   = "testdb"

	readyAttempts = 50
	readyInterval = 500 * time.Millisecond
)

// StartPostgresDB starts a postgres container and returns a connection to it
// once it accepts queries. closeFunc removes the container.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        imageTag,
		Env: []string{
			"listen_addresses = '*'",
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, closeFunc, errors.Wrap(err, "failed to start postgres container")
	}
	closeFunc = func() {
		if err := pool.Purge(resource); err != nil {
			logrus.WithError(err).Warn("failed to purge postgres container")
		}
	}

	// Expire never returns an error.
	_ = resource.Expire(uint(containerTTL.Seconds()))

	url := fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		user, password, resource.GetHostPort(fmt.Sprintf("%d/tcp", port)), dbname,
	)

	_, err = retry.Retry(
		func() error {
			db, err = sql.Open("pgx", url)
			if err != nil {
				return err
			}
			return db.Ping()
		},
		retry.Limit(readyAttempts),
		retry.Backoff(backoff.Constant(readyInterval), readyInterval),
	)
	if err != nil {
		closeFunc()
		return nil, func() {}, errors.Wrap(err, "timed out waiting for postgres container to become available")
	}

	return db, closeFunc, nil
}
