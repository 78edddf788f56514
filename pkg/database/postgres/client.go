package pg

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const (
	driverName = "nrpgx"

	defaultMaxOpenConnections = 10
	defaultMaxIdleConnections = 5
	defaultConnMaxLifetime    = 10 * time.Minute
)

type Config struct {
	User               string `mapstructure:"user"`
	Host               string `mapstructure:"host"`
	Password           string `mapstructure:"password"`
	Port               int    `mapstructure:"port"`
	DbName             string `mapstructure:"dbname"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`

	// UseAwsIam generates an RDS auth token in place of Password. Only
	// provisioned Aurora clusters support it.
	UseAwsIam bool `mapstructure:"use_aws_iam"`
}

func (c *Config) Validate() error {
	if len(c.User) == 0 {
		return errors.New("user is required")
	}
	if len(c.Host) == 0 {
		return errors.New("host is required")
	}
	if c.Port <= 0 {
		return errors.New("port is required")
	}
	if len(c.DbName) == 0 {
		return errors.New("dbname is required")
	}
	if !c.UseAwsIam && len(c.Password) == 0 {
		return errors.New("password is required without aws iam")
	}
	return nil
}

// Open returns a DB connection pool using the credential mode selected by
// the config.
func Open(c *Config) (*sql.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid postgres config")
	}

	var db *sql.DB
	var err error
	port := fmt.Sprintf("%d", c.Port)
	if c.UseAwsIam {
		var awsConfig aws.Config
		awsConfig, err = external.LoadDefaultAWSConfig()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load aws config")
		}
		db, err = NewWithAwsIam(c.User, c.Host, port, c.DbName, awsConfig)
	} else {
		db, err = NewWithUsernameAndPassword(c.User, c.Password, c.Host, port, c.DbName)
	}
	if err != nil {
		return nil, err
	}

	maxOpen := c.MaxOpenConnections
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConnections
	}
	maxIdle := c.MaxIdleConnections
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConnections
	}
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	return db, nil
}

// Get a DB connection pool using AWS IAM credentials
//
// https://docs.aws.amazon.com/AmazonRDS/latest/AuroraUserGuide/UsingWithRDS.IAMDBAuth.Connecting.Go.html
func NewWithAwsIam(username, hostname, port, dbname string, config aws.Config) (*sql.DB, error) {
	rdsClient := rds.New(config)

	endpoint := fmt.Sprintf("%s:%s", hostname, port)
	authToken, err := rdsutils.BuildAuthToken(endpoint, rdsClient.Region, username, rdsClient.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build rds auth token")
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s",
		hostname, port, username, authToken, dbname,
	)
	return openAndPing(dsn)
}

// Get a DB connection pool using username/password credentials
func NewWithUsernameAndPassword(username, password, hostname, port, dbname string) (*sql.DB, error) {
	// TODO: enable SSL once the db certificate is distributed to hosts
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		username, password, hostname, port, dbname,
	)
	return openAndPing(dsn)
}

func openAndPing(dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}
