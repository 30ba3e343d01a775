package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

type DatabaseDialect string

const (
	DialectPostgres DatabaseDialect = "pg"
)

type DBConfig struct {
	Dialect DatabaseDialect
	DSN     string
}

// DB wraps the bun connection shared by all stores.
type DB struct {
	Core *bun.DB
}

func (db *DB) Close() error {
	return db.Core.Close()
}

var defaultDB *DB

type times struct {
	CreatedAt time.Time `bun:",nullzero,notnull,skipupdate,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// InitDB opens the default database connection used by the NewXxxStore
// constructors. Call once at startup.
func InitDB(config DBConfig) error {
	db, err := NewDB(context.Background(), config)
	if err != nil {
		return err
	}
	defaultDB = db
	return nil
}

func GetDB() *DB {
	return defaultDB
}

func NewDB(ctx context.Context, config DBConfig) (*DB, error) {
	bunDB, err := newBun(ctx, config)
	if err != nil {
		return nil, err
	}
	return &DB{Core: bunDB}, nil
}

func newBun(ctx context.Context, config DBConfig) (bunDB *bun.DB, err error) {
	switch config.Dialect {
	case DialectPostgres:
		sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(config.DSN)))
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxIdleTime(time.Minute)
		bunDB = bun.NewDB(sqlDB, pgdialect.New(), bun.WithDiscardUnknownColumns())
	default:
		err = fmt.Errorf("unknown database dialect %q", config.Dialect)
		return
	}

	bunDB.AddQueryHook(bundebug.NewQueryHook(bundebug.WithEnabled(false), bundebug.FromEnv("BUNDEBUG")))

	err = bunDB.PingContext(ctx)
	if err != nil {
		err = fmt.Errorf("pinging %s database: %w", config.Dialect, err)
		return
	}
	return
}
