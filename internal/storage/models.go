package storage

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rehabdao/attestd/internal/domain"
)

const (
	DefaultCollection = "session_attestations"
	DefaultLimit      = 100
	DefaultMaxLimit   = 500
)

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configure every driver. Collection names the table or key prefix.
type Options struct {
	Collection   string
	DefaultLimit int
	MaxLimit     int
}

func (o Options) withDefaults() (Options, error) {
	if strings.TrimSpace(o.Collection) == "" {
		o.Collection = DefaultCollection
	}
	if !collectionName.MatchString(o.Collection) {
		return o, fmt.Errorf("invalid collection name %q", o.Collection)
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = DefaultLimit
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = DefaultMaxLimit
	}
	if o.DefaultLimit > o.MaxLimit {
		o.DefaultLimit = o.MaxLimit
	}
	return o, nil
}

// limit bounds a requested page size; unfiltered reads are never unbounded.
func (o Options) limit(requested int) int {
	if requested <= 0 {
		return o.DefaultLimit
	}
	if requested > o.MaxLimit {
		return o.MaxLimit
	}
	return requested
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// prepareRecord normalises a record before it is written.
func prepareRecord(rec domain.AttestationRecord) (domain.AttestationRecord, error) {
	uid, err := normalizeUID(rec.AttestationUID)
	if err != nil {
		return rec, err
	}
	rec.AttestationUID = uid
	rec.TherapistID = strings.ToLower(rec.TherapistID)
	rec.PatientHash = strings.ToLower(rec.PatientHash)
	rec.SessionHash = strings.ToLower(rec.SessionHash)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	// Stored with millisecond precision.
	rec.CreatedAt = fromMillis(toMillis(rec.CreatedAt))
	return rec, nil
}
