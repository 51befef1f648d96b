package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DateLayout is the ISO calendar date accepted for sessionDate.
const DateLayout = "2006-01-02"

type SessionType string

const (
	SessionIndividual SessionType = "individual"
	SessionGroup      SessionType = "group"
	SessionFamily     SessionType = "family"
	SessionAssessment SessionType = "assessment"
	SessionFollowup   SessionType = "followup"
)

var sessionTypes = []SessionType{
	SessionIndividual,
	SessionGroup,
	SessionFamily,
	SessionAssessment,
	SessionFollowup,
}

// SessionTypes returns the accepted session types in display order.
func SessionTypes() []SessionType {
	out := make([]SessionType, len(sessionTypes))
	copy(out, sessionTypes)
	return out
}

func (t SessionType) Valid() bool {
	for _, st := range sessionTypes {
		if t == st {
			return true
		}
	}
	return false
}

// UnmarshalJSON folds case and surrounding space so decoded values compare
// the way ParseSessionType does. Membership is checked by Validate.
func (t *SessionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = SessionType(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

func ParseSessionType(s string) (SessionType, error) {
	t := SessionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "sessionType", Err: ErrInvalidSessionType}
	}
	return t, nil
}

// SessionRecord is the attested fact. Identity fields hold keccak digests,
// never the raw therapist or patient strings.
type SessionRecord struct {
	SessionCompleted bool
	SessionDate      string
	TherapistID      common.Hash
	PatientHash      common.Hash
	SessionDuration  uint64
	SessionType      SessionType

	// Extended fields, encoded only by the v2 schema.
	Timestamp   uint64
	Notes       string
	SessionHash common.Hash
}

// Validate checks the fields shared by every schema version.
func (r SessionRecord) Validate() error {
	if err := ValidateDate(r.SessionDate); err != nil {
		return err
	}
	if r.TherapistID == (common.Hash{}) {
		return &ValidationError{Field: "therapistId", Err: ErrInvalidDigest}
	}
	if r.PatientHash == (common.Hash{}) {
		return &ValidationError{Field: "patientHash", Err: ErrInvalidDigest}
	}
	if r.SessionDuration == 0 {
		return &ValidationError{Field: "sessionDuration", Err: ErrInvalidDuration}
	}
	if !r.SessionType.Valid() {
		return &ValidationError{Field: "sessionType", Err: ErrInvalidSessionType}
	}
	return nil
}

func ValidateDate(s string) error {
	if strings.TrimSpace(s) == "" {
		return &ValidationError{Field: "sessionDate", Err: ErrMissingField}
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return &ValidationError{Field: "sessionDate", Err: ErrInvalidDate}
	}
	return nil
}

// ParseDigest accepts exactly 0x followed by 64 hex characters.
func ParseDigest(field, s string) (common.Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return common.Hash{}, &ValidationError{Field: field, Err: ErrInvalidDigest}
	}
	b := common.FromHex(s)
	if len(b) != common.HashLength {
		return common.Hash{}, &ValidationError{Field: field, Err: ErrInvalidDigest}
	}
	for _, c := range s[2:] {
		if !isHex(c) {
			return common.Hash{}, &ValidationError{Field: field, Err: ErrInvalidDigest}
		}
	}
	return common.BytesToHash(b), nil
}

func isHex(c rune) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
