// Package test provides shared fixtures for store integration tests.
package test

import (
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testUser     = "testuser"
	testPassword = "testpassword"
	// PgvectorImage ships PostgreSQL with the vector extension preinstalled.
	PgvectorImage = "pgvector/pgvector:pg16"
)

// GetPostgresDSN returns a DSN for a PostgreSQL instance with pgvector.
// POSTGRES_TEST_DSN wins if set; otherwise a container is started when
// SYNAPSE_TEST_DOCKER=1, and the test is skipped when neither is available.
func GetPostgresDSN(t *testing.T) string {
	t.Helper()

	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		return dsn
	}
	if os.Getenv("SYNAPSE_TEST_DOCKER") != "1" {
		t.Skip("set POSTGRES_TEST_DSN or SYNAPSE_TEST_DOCKER=1 to run pgvector integration tests")
	}

	pgContainer, err := postgres.Run(t.Context(),
		PgvectorImage,
		postgres.WithDatabase("synapse_test"),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := pgContainer.Terminate(t.Context()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(t.Context(), "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return connStr
}
