// Package schema encodes session records into the ABI layout registered
// with the attestation registry.
//
// A Schema is immutable. Changing the field set means registering a new
// version with its own registry schema UID; attestations issued under an
// older version keep decoding with that version.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rehabdao/attestd/internal/domain"
)

const (
	V1 = "v1"
	V2 = "v2"
)

const (
	sessionV1 = "bool sessionCompleted,string sessionDate,bytes32 therapistID,bytes32 patientHash,uint256 sessionDuration,string sessionType"
	sessionV2 = sessionV1 + ",uint64 timestamp,string notes,bytes32 sessionHash"
)

var (
	ErrUnknownVersion   = errors.New("unknown schema version")
	ErrUnsupportedField = errors.New("unsupported schema field")
	ErrFieldNotInSchema = errors.New("record sets a field the schema does not carry")
	ErrMalformedData    = errors.New("encoded data does not match schema")
)

type Field struct {
	Type string
	Name string
}

type Schema struct {
	Version string
	fields  []Field
	args    abi.Arguments
}

var registered = map[string]*Schema{
	V1: MustParse(V1, sessionV1),
	V2: MustParse(V2, sessionV2),
}

// Lookup returns a registered schema version.
func Lookup(version string) (*Schema, error) {
	s, ok := registered[strings.ToLower(strings.TrimSpace(version))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}
	return s, nil
}

// Versions lists registered versions in order.
func Versions() []string {
	out := make([]string, 0, len(registered))
	for v := range registered {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Parse builds a schema from a registry schema string such as
// "bool sessionCompleted,string sessionDate".
func Parse(version, definition string) (*Schema, error) {
	parts := strings.Split(definition, ",")
	s := &Schema{Version: version}
	seen := make(map[string]bool, len(parts))

	for _, part := range parts {
		tokens := strings.Fields(part)
		if len(tokens) != 2 {
			return nil, fmt.Errorf("parse schema field %q: want \"type name\"", part)
		}
		typ, name := tokens[0], tokens[1]

		c, ok := codecs[name]
		if !ok || c.abiType != typ {
			return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedField, typ, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("parse schema: duplicate field %s", name)
		}
		seen[name] = true

		t, err := abi.NewType(typ, "", nil)
		if err != nil {
			return nil, fmt.Errorf("parse schema type %s: %w", typ, err)
		}
		s.fields = append(s.fields, Field{Type: typ, Name: name})
		s.args = append(s.args, abi.Argument{Name: name, Type: t})
	}
	return s, nil
}

func MustParse(version, definition string) *Schema {
	s, err := Parse(version, definition)
	if err != nil {
		panic(err)
	}
	return s
}

// String returns the registry schema string.
func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Type + " " + f.Name
	}
	return strings.Join(parts, ",")
}

func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Has(name string) bool {
	for _, f := range s.fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Encode validates rec and packs it in schema field order. Nothing is
// returned unless every field encodes.
func (s *Schema) Encode(rec domain.SessionRecord) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	for name, c := range codecs {
		if !s.Has(name) && c.isSet != nil && c.isSet(rec) {
			return nil, fmt.Errorf("%w: %s (schema %s)", ErrFieldNotInSchema, name, s.Version)
		}
	}
	if err := s.checkSessionHash(rec); err != nil {
		return nil, err
	}

	values := make([]interface{}, len(s.fields))
	for i, f := range s.fields {
		values[i] = codecs[f.Name].get(rec)
	}
	data, err := s.args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.Version, err)
	}
	return data, nil
}

// Decode unpacks data produced by Encode under the same schema and
// rejects values Encode would have refused.
func (s *Schema) Decode(data []byte) (domain.SessionRecord, error) {
	var rec domain.SessionRecord

	values, err := s.args.Unpack(data)
	if err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if len(values) != len(s.fields) {
		return rec, fmt.Errorf("%w: got %d values want %d", ErrMalformedData, len(values), len(s.fields))
	}
	for i, f := range s.fields {
		if err := codecs[f.Name].set(&rec, values[i]); err != nil {
			return rec, fmt.Errorf("%w: %s: %v", ErrMalformedData, f.Name, err)
		}
	}
	if err := rec.Validate(); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if err := s.checkSessionHash(rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return rec, nil
}

func (s *Schema) checkSessionHash(rec domain.SessionRecord) error {
	if s.Has("sessionHash") && rec.SessionHash == (common.Hash{}) {
		return &domain.ValidationError{Field: "sessionHash", Err: domain.ErrInvalidDigest}
	}
	return nil
}

// UID is the registry schema identifier: keccak256 over the packed schema
// string, resolver address and revocable flag.
func (s *Schema) UID(resolver common.Address, revocable bool) common.Hash {
	flag := byte(0)
	if revocable {
		flag = 1
	}
	return crypto.Keccak256Hash([]byte(s.String()), resolver.Bytes(), []byte{flag})
}
