package helper

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDBName     = "retriever_test"
	testDBUser     = "postgres"
	testDBPassword = "postgres"
)

// MustStartPostgresContainer starts a pgvector-enabled Postgres container for tests.
// It returns a teardown function and the mapped host port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(
		ctx,
		"pgvector/pgvector:pg16",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testDBUser),
		tcpostgres.WithPassword(testDBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", err
	}

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return container.Terminate, "", err
	}

	return container.Terminate, mappedPort.Port(), nil
}

// SetTestDatabaseConfigEnvs sets the database configuration environment
// variables to point at the test container on the given port
func SetTestDatabaseConfigEnvs(t *testing.T, port string) {
	t.Setenv("RETRIEVER_DB_HOST", "localhost")
	t.Setenv("RETRIEVER_DB_PORT", port)
	t.Setenv("RETRIEVER_DB_USER", testDBUser)
	t.Setenv("RETRIEVER_DB_PASSWORD", testDBPassword)
	t.Setenv("RETRIEVER_DB_DATABASE", testDBName)
}

// NewTestDatabase connects to the test database with a quiet logger
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := slog.New(NewPrettyHandler(os.Stdout, PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: slog.LevelWarn},
	}))
	return NewDatabase("retriever_test", config, logger)
}
