package postgres

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testPool is shared by every test in the package. It is nil when the
// integration suite is skipped.
var testPool *pgxpool.Pool

// TestMain migrates a throwaway database. TEST_DATABASE_URL points the suite
// at an existing server; otherwise a postgres container is started. -short
// skips the suite.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		log.Println("skipping postgres integration tests in short mode")
		os.Exit(0)
	}
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		container, err := postgres.Run(ctx, "postgres:16-alpine",
			postgres.WithDatabase("helpdesk_test"),
			postgres.WithUsername("helpdesk"),
			postgres.WithPassword("helpdesk"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(45*time.Second),
			),
		)
		if err != nil {
			log.Printf("postgres container: %v", err)
			return 1
		}
		defer func() {
			if err := container.Terminate(ctx); err != nil {
				log.Printf("terminate postgres container: %v", err)
			}
		}()

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			log.Printf("container dsn: %v", err)
			return 1
		}
	}

	// Package dir is internal/adapters/secondary/postgres.
	migrations, err := filepath.Abs(filepath.Join("..", "..", "..", "..", "migrations"))
	if err != nil {
		log.Printf("migrations dir: %v", err)
		return 1
	}
	if err := Migrate("file://"+migrations, dsn); err != nil {
		log.Printf("migrate: %v", err)
		return 1
	}

	testPool, err = Connect(ctx, dsn, PoolConfig{MaxConns: 10})
	if err != nil {
		log.Printf("connect: %v", err)
		return 1
	}
	defer testPool.Close()

	return m.Run()
}
