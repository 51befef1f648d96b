package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	*sqlStore
}

func NewPostgresRepository(connStr string, opts Options) (*PostgresRepository, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(connStr) == "" {
		return nil, fmt.Errorf("postgres connection string is required")
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	repo := &PostgresRepository{newSQLStore(db, "postgres", opts)}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}
