package tests

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/DATA-DOG/go-txdb"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/migrate"

	"github.com/openfoodhub/insight-server/builder/store/database"
	"github.com/openfoodhub/insight-server/builder/store/database/migrations"
)

const testContainerName = "insight_server_test"

// InitTestDB returns a database backed by a shared Postgres test
// container. Every connection is wrapped in a transaction by txdb, so
// writes from one test are invisible to the others. Callers must
// `defer db.Close()`.
func InitTestDB() *database.DB {
	ctx := context.TODO()
	dsn := startPostgres(ctx, testContainerName)
	chProjectRoot()

	bdb := openBun(ctx, dsn, false)
	runMigrations(ctx, bdb)
	bdb.Close()

	return &database.DB{Core: openBun(ctx, dsn, true)}
}

// startPostgres runs (or reuses) the named Postgres container and
// returns its DSN. Reuse keeps a single container across the whole
// test run, see testcontainers-go issue 2726.
func startPostgres(ctx context.Context, name string) string {
	reuse := testcontainers.CustomizeRequestOption(
		func(req *testcontainers.GenericContainerRequest) error {
			req.Reuse = true
			req.Name = name
			return nil
		},
	)

	pc, err := postgres.Run(ctx,
		"postgres:15.7",
		reuse,
		postgres.WithDatabase(name),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)))
	if err != nil {
		panic(err)
	}

	dsn, err := pc.ConnectionString(ctx)
	if err != nil {
		panic(err)
	}
	return dsn + "sslmode=disable"
}

func openBun(ctx context.Context, dsn string, useTxdb bool) *bun.DB {
	var sqlDB *sql.DB
	if useTxdb {
		sqlDB = sql.OpenDB(txdb.New("pg", dsn))
	} else {
		sqlDB = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	}
	bdb := bun.NewDB(sqlDB, pgdialect.New(), bun.WithDiscardUnknownColumns())
	if err := bdb.PingContext(ctx); err != nil {
		panic(fmt.Errorf("pinging test database: %w", err))
	}
	bdb.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		// BUNDEBUG=1 logs failed queries, BUNDEBUG=2 logs all queries
		bundebug.FromEnv("BUNDEBUG"),
	))
	return bdb
}

func runMigrations(ctx context.Context, bdb *bun.DB) {
	migrator := migrate.NewMigrator(bdb, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		panic(err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		panic(err)
	}
}

var chMu sync.Mutex

// chProjectRoot moves the working directory to the repository root so
// relative paths inside migrations resolve regardless of which package
// the test runs from.
func chProjectRoot() {
	chMu.Lock()
	defer chMu.Unlock()
	for {
		if _, err := os.Stat("builder/store/database/migrations"); err == nil {
			return
		}
		if err := os.Chdir("../"); err != nil {
			panic(err)
		}
	}
}
