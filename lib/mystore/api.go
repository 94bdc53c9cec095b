package mystore

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ctxTransactionKey struct{}

// Filter selects entities on an exported field of T.
// Supported Compare operators are "=", "!=", "<", "<=", ">" and ">=".
type Filter struct {
	Field   string
	Compare string
	Value   any
}

//go:generate mockgen -source=api.go -package mystore -destination store_mock.go Store
type Store[T any] interface {
	RunInTransaction(c context.Context, f func(c context.Context) error) error
	Put(c context.Context, uid string, value T) error
	Get(c context.Context, uid string) (T, bool, error)
	List(c context.Context) ([]T, error)
	// Query returns the entities matching all filters. An orderByField prefixed with "-" sorts descending.
	Query(c context.Context, filters []Filter, orderByField string) ([]T, error)
	Delete(c context.Context, uid string) error
}

type Config struct {
	GoogleCloudProject string
	DatabaseURL        string
}

// Database is the connection shared by all stores of a process.
// A transaction started on one store is joined by every other store that receives its context.
type Database struct {
	datastoreClient *datastore.Client
	gormDB          *gorm.DB
}

func Connect(c context.Context, cfg Config) (*Database, func(), error) {
	switch {
	case cfg.GoogleCloudProject != "":
		client, err := datastore.NewClient(c, cfg.GoogleCloudProject)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating datastore-client: %s", err)
		}
		return &Database{datastoreClient: client}, func() {
			client.Close()
		}, nil

	case cfg.DatabaseURL != "":
		dialector, inMemory, err := dialectorFor(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		db, err := gorm.Open(dialector, &gorm.Config{
			Logger: logger.New(log.New(os.Stderr, "\r\n", log.LstdFlags), logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			}),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("error opening database: %s", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("error obtaining database handle: %s", err)
		}
		if inMemory {
			// every sqlite connection to :memory: would see its own empty database
			sqlDB.SetMaxOpenConns(1)
		}
		return &Database{gormDB: db}, func() {
			sqlDB.Close()
		}, nil

	default:
		return &Database{}, func() {}, nil
	}
}

func dialectorFor(databaseURL string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), false, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dsn := strings.TrimPrefix(databaseURL, "sqlite://")
		return sqlite.Open(dsn), strings.Contains(dsn, ":memory:"), nil
	default:
		return nil, false, fmt.Errorf("unsupported database url %q", databaseURL)
	}
}

// New creates a store for T on the given database. A nil or unconnected database yields an in-memory store.
func New[T any](c context.Context, db *Database) (Store[T], error) {
	switch {
	case db == nil:
		return NewInMemoryStore[T](c), nil
	case db.datastoreClient != nil:
		return newGcloudStore[T](db.datastoreClient), nil
	case db.gormDB != nil:
		return newGormStore[T](c, db.gormDB)
	default:
		return NewInMemoryStore[T](c), nil
	}
}

func kindOf[T any]() string {
	kind := fmt.Sprintf("%T", *new(T))
	if idx := strings.LastIndex(kind, "."); idx >= 0 {
		kind = kind[idx+1:]
	}
	return kind
}
