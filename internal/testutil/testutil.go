// Package testutil holds helpers shared by tests: a logger and a disposable
// PostgreSQL server for integration tests.
//
//	func TestMain(m *testing.M) {
//	    pg := testutil.MustStartPostgres()
//	    src, _ := pg.NewTestSource(context.Background(), testutil.TestLogger())
//	    code := m.Run()
//	    src.Close()
//	    pg.Terminate()
//	    os.Exit(code)
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ashita-ai/tracelens/internal/rowsource/postgres"
	"github.com/ashita-ai/tracelens/migrations"
)

const (
	postgresImage = "postgres:17-alpine"
	postgresCreds = "tracelens"
)

// TestContainer is a running PostgreSQL container.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// StartPostgres starts a PostgreSQL container and waits until it accepts
// connections.
func StartPostgres(ctx context.Context) (*TestContainer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     postgresCreds,
				"POSTGRES_PASSWORD": postgresCreds,
				"POSTGRES_DB":       postgresCreds,
			},
			// The entrypoint restarts the server once after init, hence two lines.
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("testutil: start postgres: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: postgres endpoint: %w", err)
	}
	return &TestContainer{
		Container: container,
		DSN:       fmt.Sprintf("postgres://%[1]s:%[1]s@%[2]s/%[1]s?sslmode=disable", postgresCreds, endpoint),
	}, nil
}

// MustStartPostgres is StartPostgres for TestMain: it exits the process on
// failure.
func MustStartPostgres() *TestContainer {
	tc, err := StartPostgres(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return tc
}

// NewTestSource connects a postgres.Source to the container with every
// migration applied.
func (tc *TestContainer) NewTestSource(ctx context.Context, logger *slog.Logger) (*postgres.Source, error) {
	src, err := postgres.New(ctx, tc.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: connect: %w", err)
	}
	if err := src.RunMigrations(ctx, migrations.FS); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("testutil: migrate: %w", err)
	}
	return src, nil
}

// Terminate removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a text logger that only shows warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
