package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/rehabdao/attestd/internal/domain"
)

// sqlStore holds the queries shared by the SQLite and Postgres drivers.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db    *sql.DB
	table string
	opts  Options
	bind  int
}

func newSQLStore(db *sql.DB, driverName string, opts Options) *sqlStore {
	return &sqlStore{db: db, table: opts.Collection, opts: opts, bind: sqlx.BindType(driverName)}
}

const columns = `attestation_uid, session_completed, session_date, therapist_id, patient_hash,
		session_duration, session_type, session_timestamp, notes, session_hash,
		created_at, network, schema_uid`

func (s *sqlStore) createTables() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		attestation_uid TEXT PRIMARY KEY,
		session_completed BOOLEAN NOT NULL,
		session_date TEXT NOT NULL,
		therapist_id TEXT NOT NULL,
		patient_hash TEXT NOT NULL,
		session_duration BIGINT NOT NULL,
		session_type TEXT NOT NULL,
		session_timestamp BIGINT NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		session_hash TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		network TEXT NOT NULL,
		schema_uid TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_therapist_id ON %[1]s(therapist_id);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_patient_hash ON %[1]s(patient_hash);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_session_date ON %[1]s(session_date);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s(created_at);
	`, s.table)

	_, err := s.db.Exec(schema)
	return err
}

func (s *sqlStore) rebind(query string) string {
	return sqlx.Rebind(s.bind, query)
}

func (s *sqlStore) StoreAttestation(ctx context.Context, rec domain.AttestationRecord) error {
	rec, err := prepareRecord(rec)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (attestation_uid) DO UPDATE SET
			session_completed = excluded.session_completed,
			session_date = excluded.session_date,
			therapist_id = excluded.therapist_id,
			patient_hash = excluded.patient_hash,
			session_duration = excluded.session_duration,
			session_type = excluded.session_type,
			session_timestamp = excluded.session_timestamp,
			notes = excluded.notes,
			session_hash = excluded.session_hash,
			created_at = excluded.created_at,
			network = excluded.network,
			schema_uid = excluded.schema_uid
	`, s.table, columns)

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		rec.AttestationUID,
		rec.SessionCompleted,
		rec.SessionDate,
		rec.TherapistID,
		rec.PatientHash,
		int64(rec.SessionDuration),
		string(rec.SessionType),
		int64(rec.Timestamp),
		rec.Notes,
		rec.SessionHash,
		toMillis(rec.CreatedAt),
		rec.Network,
		rec.SchemaUID,
	)
	if err != nil {
		return fmt.Errorf("store attestation %s: %w", rec.AttestationUID, err)
	}
	return nil
}

func (s *sqlStore) GetAttestations(ctx context.Context, filter domain.Filter) ([]domain.AttestationRecord, error) {
	filter = filter.Normalize()

	var where []string
	var args []any
	if filter.TherapistID != "" {
		where = append(where, "therapist_id = ?")
		args = append(args, filter.TherapistID)
	}
	if filter.PatientHash != "" {
		where = append(where, "patient_hash = ?")
		args = append(args, filter.PatientHash)
	}
	if filter.SessionDate != "" {
		where = append(where, "session_date = ?")
		args = append(args, filter.SessionDate)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", columns, s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, attestation_uid ASC LIMIT ? OFFSET ?"
	args = append(args, s.opts.limit(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query attestations: %w", err)
	}
	defer rows.Close()

	records := []domain.AttestationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *sqlStore) GetAttestationByUID(ctx context.Context, uid string) (domain.AttestationRecord, error) {
	uid, err := normalizeUID(uid)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	return s.getByUID(ctx, s.db, uid)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *sqlStore) getByUID(ctx context.Context, q queryRower, uid string) (domain.AttestationRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE attestation_uid = ?", columns, s.table)
	rec, err := scanRecord(q.QueryRowContext(ctx, s.rebind(query), uid))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AttestationRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *sqlStore) UpdateAttestation(ctx context.Context, uid string, update domain.Update) (domain.AttestationRecord, error) {
	uid, err := normalizeUID(uid)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	if err := update.Validate(); err != nil {
		return domain.AttestationRecord{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AttestationRecord{}, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.getByUID(ctx, tx, uid)
	if err != nil {
		return domain.AttestationRecord{}, err
	}
	update.Apply(&rec)

	query := fmt.Sprintf(`
		UPDATE %s SET
			session_completed = ?,
			session_date = ?,
			session_duration = ?,
			session_type = ?,
			network = ?,
			notes = ?
		WHERE attestation_uid = ?
	`, s.table)
	_, err = tx.ExecContext(ctx, s.rebind(query),
		rec.SessionCompleted,
		rec.SessionDate,
		int64(rec.SessionDuration),
		string(rec.SessionType),
		rec.Network,
		rec.Notes,
		uid,
	)
	if err != nil {
		return domain.AttestationRecord{}, fmt.Errorf("update attestation %s: %w", uid, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.AttestationRecord{}, fmt.Errorf("commit update: %w", err)
	}
	return rec, nil
}

func (s *sqlStore) Available() bool { return true }

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.AttestationRecord, error) {
	var rec domain.AttestationRecord
	var sessionType string
	var duration, timestamp, createdAt int64

	err := row.Scan(
		&rec.AttestationUID,
		&rec.SessionCompleted,
		&rec.SessionDate,
		&rec.TherapistID,
		&rec.PatientHash,
		&duration,
		&sessionType,
		&timestamp,
		&rec.Notes,
		&rec.SessionHash,
		&createdAt,
		&rec.Network,
		&rec.SchemaUID,
	)
	if err != nil {
		return rec, err
	}

	rec.SessionDuration = uint64(duration)
	rec.SessionType = domain.SessionType(sessionType)
	rec.Timestamp = uint64(timestamp)
	rec.CreatedAt = fromMillis(createdAt)
	return rec, nil
}
