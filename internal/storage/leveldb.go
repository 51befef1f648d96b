package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/rehabdao/attestd/internal/domain"
)

// LevelDBRepository keeps records as JSON under "<collection>:<uid>".
// Filtered reads scan the collection prefix.
type LevelDBRepository struct {
	db     *leveldb.DB
	prefix []byte
	opts   Options

	// mu serialises read-modify-write updates.
	mu sync.Mutex
}

func NewLevelDBRepository(path string, opts Options) (*LevelDBRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("leveldb path is required")
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	repo, err := NewLevelDBRepositoryFromDB(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewLevelDBRepositoryFromDB wraps an already opened database.
func NewLevelDBRepositoryFromDB(db *leveldb.DB, opts Options) (*LevelDBRepository, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &LevelDBRepository{
		db:     db,
		prefix: []byte(opts.Collection + ":"),
		opts:   opts,
	}, nil
}

func (r *LevelDBRepository) key(uid string) []byte {
	return append(append([]byte{}, r.prefix...), uid...)
}

func (r *LevelDBRepository) StoreAttestation(ctx context.Context, rec domain.AttestationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := prepareRecord(rec)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.db.Put(r.key(rec.AttestationUID), data, nil); err != nil {
		return fmt.Errorf("store attestation %s: %w", rec.AttestationUID, err)
	}
	return nil
}

func (r *LevelDBRepository) GetAttestations(ctx context.Context, filter domain.Filter) ([]domain.AttestationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter = filter.Normalize()

	iter := r.db.NewIterator(util.BytesPrefix(r.prefix), nil)
	defer iter.Release()

	var matched []domain.AttestationRecord
	for iter.Next() {
		var rec domain.AttestationRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		if filter.Matches(rec) {
			matched = append(matched, rec)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan attestations: %w", err)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].AttestationUID < matched[j].AttestationUID
	})

	records := []domain.AttestationRecord{}
	if filter.Offset >= len(matched) {
		return records, nil
	}
	end := filter.Offset + r.opts.limit(filter.Limit)
	if end > len(matched) {
		end = len(matched)
	}
	return append(records, matched[filter.Offset:end]...), nil
}

func (r *LevelDBRepository) GetAttestationByUID(ctx context.Context, uid string) (domain.AttestationRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AttestationRecord{}, err
	}
	uid, err := normalizeUID(uid)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	return r.get(uid)
}

func (r *LevelDBRepository) get(uid string) (domain.AttestationRecord, error) {
	var rec domain.AttestationRecord
	data, err := r.db.Get(r.key(uid), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("get attestation %s: %w", uid, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode attestation %s: %w", uid, err)
	}
	return rec, nil
}

func (r *LevelDBRepository) UpdateAttestation(ctx context.Context, uid string, update domain.Update) (domain.AttestationRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AttestationRecord{}, err
	}
	uid, err := normalizeUID(uid)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	if err := update.Validate(); err != nil {
		return domain.AttestationRecord{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.get(uid)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	update.Apply(&rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	if err := r.db.Put(r.key(uid), data, nil); err != nil {
		return domain.AttestationRecord{}, fmt.Errorf("update attestation %s: %w", uid, err)
	}
	return rec, nil
}

func (r *LevelDBRepository) Available() bool { return true }

func (r *LevelDBRepository) Close() error {
	return r.db.Close()
}
