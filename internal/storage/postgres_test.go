package storage_test

import (
	"database/sql"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rehabdao/attestd/internal/storage"
)

var pgTableSeq atomic.Int64

// Runs against a live server only when ATTESTD_TEST_POSTGRES_DSN is set.
func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("ATTESTD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ATTESTD_TEST_POSTGRES_DSN not set")
	}

	runRepositoryContract(t, func(t *testing.T, opts storage.Options) storage.Repository {
		t.Helper()
		opts.Collection = fmt.Sprintf("attest_test_%d_%d", time.Now().UnixNano(), pgTableSeq.Add(1))
		repo, err := storage.NewPostgresRepository(dsn, opts)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		t.Cleanup(func() {
			repo.Close()
			if db, err := sql.Open("postgres", dsn); err == nil {
				db.Exec("DROP TABLE IF EXISTS " + opts.Collection)
				db.Close()
			}
		})
		return repo
	})
}
