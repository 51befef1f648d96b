package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/rehabdao/attestd/internal/hasher"
	"github.com/rehabdao/attestd/internal/schema"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

const sessionJSON = `{
  "sessionCompleted": true,
  "sessionDate": "2025-01-15",
  "therapistInfo": "Dr. X",
  "patientInfo": "Patient Y",
  "sessionDuration": 60,
  "sessionType": "individual"
}`

func TestHashCommand(t *testing.T) {
	want, err := hasher.Hash("hello")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	out, err := execute(t, "", "hash", "hello", "--output", "json")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var res hashResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if res.Digest != want.Hex() {
		t.Fatalf("digest = %q, want %q", res.Digest, want.Hex())
	}

	if _, err := execute(t, "", "hash", "   "); err == nil {
		t.Fatal("expected error for blank input")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, version := range []string{schema.V1, schema.V2} {
		t.Run(version, func(t *testing.T) {
			out, err := execute(t, sessionJSON, "encode", "--schema", version, "--output", "json")
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			var enc encodeResult
			if err := json.Unmarshal([]byte(out), &enc); err != nil {
				t.Fatalf("decode encode output: %v", err)
			}
			if !strings.HasPrefix(enc.Data, "0x") {
				t.Fatalf("data = %q, want 0x prefix", enc.Data)
			}

			out, err = execute(t, "", "decode", "--schema", version, enc.Data, "--output", "yaml")
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			var dec sessionResult
			if err := yaml.Unmarshal([]byte(out), &dec); err != nil {
				t.Fatalf("parse yaml %q: %v", out, err)
			}

			therapist, _ := hasher.Hash("Dr. X")
			if dec.TherapistID != therapist.Hex() {
				t.Fatalf("therapistId = %q, want %q", dec.TherapistID, therapist.Hex())
			}
			if dec.SessionDuration != 60 || dec.SessionType != "individual" || dec.SessionDate != "2025-01-15" {
				t.Fatalf("decoded = %+v", dec)
			}
			if (dec.SessionHash != "") != (version == schema.V2) {
				t.Fatalf("sessionHash = %q for %s", dec.SessionHash, version)
			}
		})
	}
}

func TestEncodeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(sessionJSON), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := execute(t, "", "encode", "--file", path)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(out, "0x") {
		t.Fatalf("text output missing data: %q", out)
	}
}

func TestEncodeRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		args  []string
	}{
		{"bad json", "{", nil},
		{"unknown type", strings.Replace(sessionJSON, "individual", "couples", 1), nil},
		{"zero duration", strings.Replace(sessionJSON, `"sessionDuration": 60`, `"sessionDuration": 0`, 1), nil},
		{"missing therapist", strings.Replace(sessionJSON, `"therapistInfo": "Dr. X",`, "", 1), nil},
		{"bad digest", strings.Replace(sessionJSON, `"therapistInfo": "Dr. X"`, `"therapistId": "0x1234"`, 1), nil},
		{"notes on v1", strings.Replace(sessionJSON, `"sessionType": "individual"`, `"sessionType": "individual", "notes": "x"`, 1), nil},
		{"unknown schema", sessionJSON, []string{"--schema", "v9"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"encode"}, tt.args...)
			if _, err := execute(t, tt.input, args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDecodeRejectsBadData(t *testing.T) {
	tests := [][]string{
		{"decode", "not-hex"},
		{"decode", "0x0102"},
		{"decode"},
	}
	for _, args := range tests {
		if _, err := execute(t, "", args...); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestSchemaUIDCommand(t *testing.T) {
	sc, _ := schema.Lookup(schema.V1)

	out, err := execute(t, "", "schema-uid", "--output", "json")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var res schemaUIDResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Schema != sc.String() {
		t.Fatalf("schema = %q, want %q", res.Schema, sc.String())
	}
	if !res.Revocable {
		t.Fatal("revocable should default to true")
	}

	out, err = execute(t, "", "schema-uid", "--revocable=false", "--output", "json")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var nonRevocable schemaUIDResult
	if err := json.Unmarshal([]byte(out), &nonRevocable); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if nonRevocable.UID == res.UID {
		t.Fatal("revocable flag did not change the uid")
	}

	if _, err := execute(t, "", "schema-uid", "--resolver", "nope"); err == nil {
		t.Fatal("expected error for bad resolver")
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	if _, err := execute(t, "", "hash", "x", "--output", "xml"); err == nil {
		t.Fatal("expected error for unknown output format")
	}
}
