package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/filex"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// Store is an opened credential store.
type Store struct {
	Backend Backend
	DB      *sql.DB // nil for BackendMemory
	Users   users.Repository
}

// Close releases the connection pool, if any.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Open connects to dsn, applies migrations and returns the users repository.
func Open(ctx context.Context, dsn string) (*Store, error) {
	backend, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	var (
		driver string
		m      RepositoryManager
	)
	switch backend {
	case BackendMemory:
		return &Store{Backend: backend, Users: users.NewMemoryRepository()}, nil
	case BackendPostgres:
		driver, m = "pgx", NewPostgresRepositoryManager()
	case BackendSQLite:
		driver, m = "sqlite", NewSQLiteRepositoryManager()
		if source != ":memory:" {
			if err := filex.EnsureParentDir(source); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", backend, err)
	}
	if backend == BackendSQLite {
		// SQLite allows a single writer; :memory: is per connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", backend, err)
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", backend, err)
	}

	return &Store{Backend: backend, DB: db, Users: m.Users(db)}, nil
}
