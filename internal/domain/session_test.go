package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func validRecord() SessionRecord {
	return SessionRecord{
		SessionCompleted: true,
		SessionDate:      "2025-01-15",
		TherapistID:      common.HexToHash("0x01"),
		PatientHash:      common.HexToHash("0x02"),
		SessionDuration:  60,
		SessionType:      SessionIndividual,
	}
}

func validTime() time.Time {
	return time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)
}

func TestParseSessionType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SessionType
		wantErr bool
	}{
		{name: "individual", input: "individual", want: SessionIndividual},
		{name: "mixed case", input: "FollowUp", want: SessionFollowup},
		{name: "padded", input: "  group ", want: SessionGroup},
		{name: "unknown", input: "couples", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSessionType(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSessionType) {
					t.Fatalf("ParseSessionType(%q) error = %v, want %v", tt.input, err, ErrInvalidSessionType)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSessionType(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseSessionType(%q) = %q want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSessionRecordValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SessionRecord)
		want   error
		field  string
	}{
		{name: "valid", mutate: func(*SessionRecord) {}},
		{name: "zero duration", mutate: func(r *SessionRecord) { r.SessionDuration = 0 }, want: ErrInvalidDuration, field: "sessionDuration"},
		{name: "bad type", mutate: func(r *SessionRecord) { r.SessionType = "couples" }, want: ErrInvalidSessionType, field: "sessionType"},
		{name: "missing therapist", mutate: func(r *SessionRecord) { r.TherapistID = common.Hash{} }, want: ErrInvalidDigest, field: "therapistId"},
		{name: "missing patient", mutate: func(r *SessionRecord) { r.PatientHash = common.Hash{} }, want: ErrInvalidDigest, field: "patientHash"},
		{name: "missing date", mutate: func(r *SessionRecord) { r.SessionDate = "" }, want: ErrMissingField, field: "sessionDate"},
		{name: "bad date", mutate: func(r *SessionRecord) { r.SessionDate = "15/01/2025" }, want: ErrInvalidDate, field: "sessionDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)

			err := rec.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("Validate() field = %v, want %q", err, tt.field)
			}
		})
	}
}

func TestParseDigest(t *testing.T) {
	good := "0x1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"

	got, err := ParseDigest("therapistId", good)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hex() != good {
		t.Fatalf("ParseDigest = %s want %s", got.Hex(), good)
	}

	bad := []string{
		"",
		"1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8",
		"0x1c8aff95",
		good + "00",
		"0xzz8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8",
	}
	for _, in := range bad {
		if _, err := ParseDigest("patientHash", in); !errors.Is(err, ErrInvalidDigest) {
			t.Errorf("ParseDigest(%q) error = %v, want %v", in, err, ErrInvalidDigest)
		}
	}
}

func TestUpdateApplyOnlyTouchesSetFields(t *testing.T) {
	rec := NewAttestationRecord(common.HexToHash("0xaa"), validRecord(), "sepolia", common.HexToHash("0xbb"), validTime())
	before := rec

	followup := SessionFollowup
	u := Update{SessionType: &followup}
	if err := u.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u.Apply(&rec)

	if rec.SessionType != SessionFollowup {
		t.Fatalf("session type = %q want %q", rec.SessionType, SessionFollowup)
	}
	rec.SessionType = before.SessionType
	if rec != before {
		t.Fatalf("update changed other fields: %+v vs %+v", rec, before)
	}
}

func TestUpdateValidate(t *testing.T) {
	zero := uint64(0)
	badType := SessionType("couples")
	badDate := "tomorrow"

	tests := []struct {
		name string
		u    Update
		want error
	}{
		{name: "empty", u: Update{}, want: ErrEmptyUpdate},
		{name: "zero duration", u: Update{SessionDuration: &zero}, want: ErrInvalidDuration},
		{name: "bad type", u: Update{SessionType: &badType}, want: ErrInvalidSessionType},
		{name: "bad date", u: Update{SessionDate: &badDate}, want: ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.u.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUpdateDecodesSessionTypeCaseInsensitively(t *testing.T) {
	var u Update
	if err := json.Unmarshal([]byte(`{"sessionType":" FollowUp "}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.SessionType == nil || *u.SessionType != SessionFollowup {
		t.Fatalf("sessionType = %v, want %q", u.SessionType, SessionFollowup)
	}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if err := json.Unmarshal([]byte(`{"sessionType":7}`), &u); err == nil {
		t.Fatalf("expected error for non-string sessionType")
	}
}

func TestFilterMatchesIsConjunction(t *testing.T) {
	rec := NewAttestationRecord(common.HexToHash("0xaa"), validRecord(), "sepolia", common.HexToHash("0xbb"), validTime())

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty matches all", filter: Filter{}, want: true},
		{name: "therapist", filter: Filter{TherapistID: rec.TherapistID}, want: true},
		{name: "therapist upper case", filter: Filter{TherapistID: "0x" + strings.ToUpper(rec.TherapistID[2:])}, want: true},
		{name: "therapist and date", filter: Filter{TherapistID: rec.TherapistID, SessionDate: "2025-01-15"}, want: true},
		{name: "therapist and wrong date", filter: Filter{TherapistID: rec.TherapistID, SessionDate: "2025-01-16"}, want: false},
		{name: "wrong patient", filter: Filter{PatientHash: rec.TherapistID}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(rec); got != tt.want {
				t.Fatalf("Matches() = %v want %v", got, tt.want)
			}
		})
	}
}
