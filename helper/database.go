package helper

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the connection parameters for the Postgres database.
// All values are read from environment variables by NewDatabaseConfiguration.
type DatabaseConfiguration struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Schema   string
}

// NewDatabaseConfiguration creates a DatabaseConfiguration from environment variables:
// RETRIEVER_DB_HOST, RETRIEVER_DB_PORT, RETRIEVER_DB_USER, RETRIEVER_DB_PASSWORD,
// RETRIEVER_DB_DATABASE and optionally RETRIEVER_DB_SCHEMA (defaults to public).
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	config := &DatabaseConfiguration{
		Host:     os.Getenv("RETRIEVER_DB_HOST"),
		Port:     os.Getenv("RETRIEVER_DB_PORT"),
		User:     os.Getenv("RETRIEVER_DB_USER"),
		Password: os.Getenv("RETRIEVER_DB_PASSWORD"),
		DBName:   os.Getenv("RETRIEVER_DB_DATABASE"),
		Schema:   os.Getenv("RETRIEVER_DB_SCHEMA"),
	}

	if config.Host == "" || config.Port == "" || config.User == "" || config.Password == "" || config.DBName == "" {
		return nil, fmt.Errorf("missing database configuration, need RETRIEVER_DB_HOST, RETRIEVER_DB_PORT, RETRIEVER_DB_USER, RETRIEVER_DB_PASSWORD and RETRIEVER_DB_DATABASE")
	}

	if config.Schema == "" {
		config.Schema = "public"
	}

	return config, nil
}

// ConnectionString returns the lib/pq connection string for the configuration
func (c *DatabaseConfiguration) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable search_path=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.Schema,
	)
}

// Database wraps the sql.DB connection with a name and logger
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens a connection to the configured Postgres database.
// It panics if the database is unreachable, connection problems are not
// recoverable at this level.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		log.Panicf("error opening database connection: %#v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		log.Panicf("error pinging database: %#v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host))

	return &Database{
		Name:     name,
		Instance: db,
		Logger:   logger,
	}
}

// Close closes the underlying database connection
func (d *Database) Close() error {
	d.Logger.Info("Closing database connection", slog.String("name", d.Name))
	return d.Instance.Close()
}
