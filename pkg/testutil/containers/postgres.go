//go:build integration

package containers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jmoiron/sqlx"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"incorp/internal/platform/config"
	"incorp/internal/platform/postgres"
)

// PostgresContainer is a migrated Postgres instance. The container login role
// is a superuser; stores must SET ROLE to the policy role for RLS to apply.
type PostgresContainer struct {
	URL string
	DB  *sqlx.DB
}

// NewPostgres starts Postgres, applies the embedded migrations and registers
// cleanup on t.
func NewPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("portal"),
		tcpostgres.WithUsername("portal"),
		tcpostgres.WithPassword("portal"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := postgres.Open(ctx, config.DatabaseConfig{URL: url, MaxOpenConns: 5, MaxIdleConns: 2})
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := postgres.Migrate(db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("failed to migrate postgres: %v", err)
	}
	return &PostgresContainer{URL: url, DB: db}
}

// Truncate empties the portal tables between tests.
func (p *PostgresContainer) Truncate(t *testing.T) {
	t.Helper()
	if _, err := p.DB.Exec("TRUNCATE incorporation_requests, principals"); err != nil {
		t.Fatalf("failed to truncate: %v", err)
	}
}
