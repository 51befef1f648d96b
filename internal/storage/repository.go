package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rehabdao/attestd/internal/domain"
)

var (
	ErrNotFound    = errors.New("attestation record not found")
	ErrUnavailable = errors.New("attestation store not available")
	ErrInvalidUID  = errors.New("attestation uid is required")
)

// Repository is the queryable index of attested sessions. It is a cache of
// the registry, not the source of truth.
type Repository interface {
	// StoreAttestation inserts or replaces the record with the same UID.
	StoreAttestation(ctx context.Context, rec domain.AttestationRecord) error

	GetAttestations(ctx context.Context, filter domain.Filter) ([]domain.AttestationRecord, error)

	GetAttestationByUID(ctx context.Context, uid string) (domain.AttestationRecord, error)

	UpdateAttestation(ctx context.Context, uid string, update domain.Update) (domain.AttestationRecord, error)

	Available() bool

	Close() error
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverLevelDB  = "leveldb"
	DriverNone     = "none"
)

// Open selects a driver. DriverNone (or an empty driver) yields the
// Unavailable handle.
func Open(driver, dsn string, opts Options) (Repository, error) {
	var (
		repo Repository
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		repo, err = NewSQLiteRepository(dsn, opts)
	case DriverPostgres:
		repo, err = NewPostgresRepository(dsn, opts)
	case DriverLevelDB:
		repo, err = NewLevelDBRepository(dsn, opts)
	case DriverNone, "":
		return NewUnavailable("store driver not configured"), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func normalizeUID(uid string) (string, error) {
	uid = strings.ToLower(strings.TrimSpace(uid))
	if uid == "" {
		return "", ErrInvalidUID
	}
	return uid, nil
}
