package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AttestationRecord is the store projection of an attested SessionRecord.
// The registry copy is authoritative; this one may drift after updates.
type AttestationRecord struct {
	AttestationUID   string      `json:"attestationUid"`
	SessionCompleted bool        `json:"sessionCompleted"`
	SessionDate      string      `json:"sessionDate"`
	TherapistID      string      `json:"therapistId"`
	PatientHash      string      `json:"patientHash"`
	SessionDuration  uint64      `json:"sessionDuration"`
	SessionType      SessionType `json:"sessionType"`
	Timestamp        uint64      `json:"timestamp,omitempty"`
	Notes            string      `json:"notes,omitempty"`
	SessionHash      string      `json:"sessionHash,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	Network          string      `json:"network"`
	SchemaUID        string      `json:"schemaUid"`
}

func NewAttestationRecord(uid common.Hash, rec SessionRecord, network string, schemaUID common.Hash, createdAt time.Time) AttestationRecord {
	out := AttestationRecord{
		AttestationUID:   uid.Hex(),
		SessionCompleted: rec.SessionCompleted,
		SessionDate:      rec.SessionDate,
		TherapistID:      rec.TherapistID.Hex(),
		PatientHash:      rec.PatientHash.Hex(),
		SessionDuration:  rec.SessionDuration,
		SessionType:      rec.SessionType,
		Timestamp:        rec.Timestamp,
		Notes:            rec.Notes,
		CreatedAt:        createdAt.UTC(),
		Network:          network,
		SchemaUID:        schemaUID.Hex(),
	}
	if rec.SessionHash != (common.Hash{}) {
		out.SessionHash = rec.SessionHash.Hex()
	}
	return out
}

// Filter selects records matching every non-empty field.
type Filter struct {
	TherapistID string
	PatientHash string
	SessionDate string
	Limit       int
	Offset      int
}

func (f Filter) Matches(rec AttestationRecord) bool {
	if f.TherapistID != "" && !sameHex(f.TherapistID, rec.TherapistID) {
		return false
	}
	if f.PatientHash != "" && !sameHex(f.PatientHash, rec.PatientHash) {
		return false
	}
	if f.SessionDate != "" && f.SessionDate != rec.SessionDate {
		return false
	}
	return true
}

// Normalize lowercases digest filters so they compare against stored hex.
func (f Filter) Normalize() Filter {
	if f.TherapistID != "" {
		f.TherapistID = lowerHex(f.TherapistID)
	}
	if f.PatientHash != "" {
		f.PatientHash = lowerHex(f.PatientHash)
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Update carries a partial change to a stored record. Identity fields
// (uid, digests, schema, createdAt) cannot be changed.
type Update struct {
	SessionCompleted *bool        `json:"sessionCompleted,omitempty"`
	SessionDate      *string      `json:"sessionDate,omitempty"`
	SessionDuration  *uint64      `json:"sessionDuration,omitempty"`
	SessionType      *SessionType `json:"sessionType,omitempty"`
	Network          *string      `json:"network,omitempty"`
	Notes            *string      `json:"notes,omitempty"`
}

func (u Update) IsEmpty() bool {
	return u.SessionCompleted == nil &&
		u.SessionDate == nil &&
		u.SessionDuration == nil &&
		u.SessionType == nil &&
		u.Network == nil &&
		u.Notes == nil
}

func (u Update) Validate() error {
	if u.IsEmpty() {
		return &ValidationError{Field: "updates", Err: ErrEmptyUpdate}
	}
	if u.SessionDate != nil {
		if err := ValidateDate(*u.SessionDate); err != nil {
			return err
		}
	}
	if u.SessionDuration != nil && *u.SessionDuration == 0 {
		return &ValidationError{Field: "sessionDuration", Err: ErrInvalidDuration}
	}
	if u.SessionType != nil && !u.SessionType.Valid() {
		return &ValidationError{Field: "sessionType", Err: ErrInvalidSessionType}
	}
	return nil
}

// Apply merges the set fields into rec.
func (u Update) Apply(rec *AttestationRecord) {
	if u.SessionCompleted != nil {
		rec.SessionCompleted = *u.SessionCompleted
	}
	if u.SessionDate != nil {
		rec.SessionDate = *u.SessionDate
	}
	if u.SessionDuration != nil {
		rec.SessionDuration = *u.SessionDuration
	}
	if u.SessionType != nil {
		rec.SessionType = *u.SessionType
	}
	if u.Network != nil {
		rec.Network = *u.Network
	}
	if u.Notes != nil {
		rec.Notes = *u.Notes
	}
}

func sameHex(a, b string) bool {
	return lowerHex(a) == lowerHex(b)
}

func lowerHex(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
