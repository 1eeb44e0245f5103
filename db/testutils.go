package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testDb    *sqlx.DB
	getDbOnce sync.Once
)

// GetDb returns a shared connection to the database POSTGRES_URL points at,
// with the schema initialized. Tests needing Postgres are skipped when the
// variable is unset.
func GetDb(t *testing.T) *sqlx.DB {
	if os.Getenv("POSTGRES_URL") == "" {
		t.Skip("POSTGRES_URL not set")
	}

	getDbOnce.Do(func() {
		var err error
		testDb, err = sqlx.Open("postgres", os.Getenv("POSTGRES_URL"))
		assert.NoError(t, err)

		err = InitializeDatabaseSchema(testDb)
		assert.NoError(t, err)
	})
	return testDb
}

// GetDbOrNil is GetDb for tests that degrade instead of skipping: it returns
// nil when POSTGRES_URL is unset so the caller can fall back to in-memory
// repositories.
func GetDbOrNil(t *testing.T) *sqlx.DB {
	if os.Getenv("POSTGRES_URL") == "" {
		return nil
	}
	return GetDb(t)
}

func StartPostgresContainer() (testcontainers.Container, string) {
	ctx := context.Background()
	dbName := "db"
	dbUser := "user"
	dbPassword := "password"

	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable", "application_name=test")
	if err != nil {
		panic(err)
	}

	return postgresContainer, connStr
}
