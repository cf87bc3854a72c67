package clients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tyemirov/dagbuild/internal/dag"
)

const (
	postgresDriverNameConstant = "pgx"

	postgresURLMissingMessageConstant         = "postgres url not provided"
	postgresPingTimeoutInvalidMessageConstant = "postgres ping timeout must be positive"
	postgresOpenConnsInvalidMessageConstant   = "postgres max open connections must be at least 1"
	postgresIdleConnsInvalidMessageConstant   = "postgres max idle connections must not be negative"
	postgresIdleExceedsOpenMessageConstant    = "postgres max idle connections must not exceed max open connections"
	postgresOpenErrorTemplateConstant         = "unable to open postgres connection: %w"
	postgresPingErrorTemplateConstant         = "unable to ping postgres: %w"

	defaultPostgresPingTimeoutConstant        = 2 * time.Second
	defaultPostgresMaxOpenConnectionsConstant = 10
	defaultPostgresMaxIdleConnectionsConstant = 5
)

// PostgresConfiguration captures the settings of a pooled database client.
type PostgresConfiguration struct {
	URL                string        `mapstructure:"url" yaml:"url"`
	PingTimeout        time.Duration `mapstructure:"ping_timeout" yaml:"ping_timeout"`
	MaxOpenConnections int           `mapstructure:"max_open_connections" yaml:"max_open_connections"`
	MaxIdleConnections int           `mapstructure:"max_idle_connections" yaml:"max_idle_connections"`
}

// WithDefaults fills unset pool settings with their defaults.
func (configuration PostgresConfiguration) WithDefaults() PostgresConfiguration {
	if configuration.PingTimeout == 0 {
		configuration.PingTimeout = defaultPostgresPingTimeoutConstant
	}
	if configuration.MaxOpenConnections == 0 {
		configuration.MaxOpenConnections = defaultPostgresMaxOpenConnectionsConstant
	}
	if configuration.MaxIdleConnections == 0 {
		configuration.MaxIdleConnections = defaultPostgresMaxIdleConnectionsConstant
	}
	return configuration
}

// Validate checks the configuration for usable values.
func (configuration PostgresConfiguration) Validate() error {
	if len(strings.TrimSpace(configuration.URL)) == 0 {
		return errors.New(postgresURLMissingMessageConstant)
	}
	if configuration.PingTimeout <= 0 {
		return errors.New(postgresPingTimeoutInvalidMessageConstant)
	}
	if configuration.MaxOpenConnections < 1 {
		return errors.New(postgresOpenConnsInvalidMessageConstant)
	}
	if configuration.MaxIdleConnections < 0 {
		return errors.New(postgresIdleConnsInvalidMessageConstant)
	}
	if configuration.MaxIdleConnections > configuration.MaxOpenConnections {
		return errors.New(postgresIdleExceedsOpenMessageConstant)
	}
	return nil
}

// PostgresClient wraps a pooled SQL database handle as a graph resource client.
type PostgresClient struct {
	database *sql.DB
}

var _ dag.Client = (*PostgresClient)(nil)

// NewPostgresClient opens a ping-validated connection pool using the pgx driver.
func NewPostgresClient(executionContext context.Context, configuration PostgresConfiguration) (*PostgresClient, error) {
	configuration = configuration.WithDefaults()
	if validationError := configuration.Validate(); validationError != nil {
		return nil, validationError
	}

	database, openError := sql.Open(postgresDriverNameConstant, configuration.URL)
	if openError != nil {
		return nil, fmt.Errorf(postgresOpenErrorTemplateConstant, openError)
	}

	database.SetMaxOpenConns(configuration.MaxOpenConnections)
	database.SetMaxIdleConns(configuration.MaxIdleConnections)

	pingContext, cancel := context.WithTimeout(executionContext, configuration.PingTimeout)
	defer cancel()
	if pingError := database.PingContext(pingContext); pingError != nil {
		_ = database.Close()
		return nil, fmt.Errorf(postgresPingErrorTemplateConstant, pingError)
	}

	return &PostgresClient{database: database}, nil
}

// Database exposes the pooled handle for task builds.
func (client *PostgresClient) Database() *sql.DB {
	return client.database
}

// Close releases the connection pool.
func (client *PostgresClient) Close() error {
	return client.database.Close()
}
