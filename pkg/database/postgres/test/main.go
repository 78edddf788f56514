package test

import (
	"database/sql"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
)

// Schema is the DDL a test package owns. Drop must undo Create.
type Schema struct {
	Create string
	Drop   string
}

func (s Schema) reset(db *sql.DB) error {
	if _, err := db.Exec(s.Drop); err != nil {
		return err
	}
	_, err := db.Exec(s.Create)
	return err
}

// Main is a TestMain body: it starts a container, applies schema, hands the
// connection to bind and runs the tests. bind receives a reset func tests call
// between cases to recreate the schema. The result is the exit code.
func Main(m *testing.M, schema Schema, bind func(db *sql.DB, reset func())) int {
	log := logrus.StandardLogger().WithField("type", "postgres/test")

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("error creating docker pool")
		return 1
	}

	db, closeFunc, err := StartPostgresDB(pool)
	if err != nil {
		log.WithError(err).Error("error starting postgres container")
		return 1
	}
	defer closeFunc()
	defer db.Close()

	if _, err := db.Exec(schema.Create); err != nil {
		log.WithError(err).Error("error creating test tables")
		return 1
	}

	bind(db, func() {
		// A failed assertion panics through here; the container must still go.
		if pc := recover(); pc != nil {
			closeFunc()
			panic(pc)
		}
		if err := schema.reset(db); err != nil {
			closeFunc()
			log.WithError(err).Fatal("error resetting test tables")
		}
	})

	return m.Run()
}
