package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rehabdao/attestd/internal/domain"
	"github.com/rehabdao/attestd/internal/storage"
)

func openTempSQLite(t *testing.T, opts storage.Options) storage.Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "attestations.db")
	repo, err := storage.NewSQLiteRepository(path, opts)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Fatalf("close sqlite: %v", err)
		}
	})
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	t.Parallel()
	runRepositoryContract(t, openTempSQLite)
}

func TestSQLiteRepositoryPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "attestations.db")
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(path, storage.Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := record(1, therapistA, patientA, "2025-01-15")
	if err := repo.StoreAttestation(ctx, rec); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := storage.NewSQLiteRepository(path, storage.Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetAttestationByUID(ctx, rec.AttestationUID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AttestationUID != rec.AttestationUID || !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("got = %+v, want %+v", got, rec)
	}
}

func TestSQLiteRepositoryCollectionsAreSeparate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "attestations.db")
	ctx := context.Background()

	first, err := storage.NewSQLiteRepository(path, storage.Options{Collection: "first"})
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	if err := first.StoreAttestation(ctx, record(1, therapistA, patientA, "2025-01-15")); err != nil {
		t.Fatalf("store: %v", err)
	}
	first.Close()

	second, err := storage.NewSQLiteRepository(path, storage.Options{Collection: "second"})
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	defer second.Close()

	got, err := second.GetAttestations(ctx, domain.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}
