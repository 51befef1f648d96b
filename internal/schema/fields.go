package schema

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rehabdao/attestd/internal/domain"
)

type fieldCodec struct {
	abiType string
	get     func(domain.SessionRecord) interface{}
	set     func(*domain.SessionRecord, interface{}) error
	// isSet is nil for fields every schema carries.
	isSet func(domain.SessionRecord) bool
}

var codecs = map[string]fieldCodec{
	"sessionCompleted": {
		abiType: "bool",
		get:     func(r domain.SessionRecord) interface{} { return r.SessionCompleted },
		set: func(r *domain.SessionRecord, v interface{}) error {
			b, ok := v.(bool)
			if !ok {
				return typeErr("bool", v)
			}
			r.SessionCompleted = b
			return nil
		},
	},
	"sessionDate": {
		abiType: "string",
		get:     func(r domain.SessionRecord) interface{} { return r.SessionDate },
		set: func(r *domain.SessionRecord, v interface{}) error {
			s, ok := v.(string)
			if !ok {
				return typeErr("string", v)
			}
			r.SessionDate = s
			return nil
		},
	},
	"therapistID": {
		abiType: "bytes32",
		get:     func(r domain.SessionRecord) interface{} { return [32]byte(r.TherapistID) },
		set: func(r *domain.SessionRecord, v interface{}) error {
			return setDigest(&r.TherapistID, v)
		},
	},
	"patientHash": {
		abiType: "bytes32",
		get:     func(r domain.SessionRecord) interface{} { return [32]byte(r.PatientHash) },
		set: func(r *domain.SessionRecord, v interface{}) error {
			return setDigest(&r.PatientHash, v)
		},
	},
	"sessionDuration": {
		abiType: "uint256",
		get: func(r domain.SessionRecord) interface{} {
			return new(big.Int).SetUint64(r.SessionDuration)
		},
		set: func(r *domain.SessionRecord, v interface{}) error {
			n, ok := v.(*big.Int)
			if !ok {
				return typeErr("*big.Int", v)
			}
			if !n.IsUint64() {
				return fmt.Errorf("duration %s overflows uint64", n)
			}
			r.SessionDuration = n.Uint64()
			return nil
		},
	},
	"sessionType": {
		abiType: "string",
		get:     func(r domain.SessionRecord) interface{} { return string(r.SessionType) },
		set: func(r *domain.SessionRecord, v interface{}) error {
			s, ok := v.(string)
			if !ok {
				return typeErr("string", v)
			}
			r.SessionType = domain.SessionType(s)
			return nil
		},
	},
	"timestamp": {
		abiType: "uint64",
		get:     func(r domain.SessionRecord) interface{} { return r.Timestamp },
		set: func(r *domain.SessionRecord, v interface{}) error {
			n, ok := v.(uint64)
			if !ok {
				return typeErr("uint64", v)
			}
			r.Timestamp = n
			return nil
		},
		isSet: func(r domain.SessionRecord) bool { return r.Timestamp != 0 },
	},
	"notes": {
		abiType: "string",
		get:     func(r domain.SessionRecord) interface{} { return r.Notes },
		set: func(r *domain.SessionRecord, v interface{}) error {
			s, ok := v.(string)
			if !ok {
				return typeErr("string", v)
			}
			r.Notes = s
			return nil
		},
		isSet: func(r domain.SessionRecord) bool { return r.Notes != "" },
	},
	"sessionHash": {
		abiType: "bytes32",
		get:     func(r domain.SessionRecord) interface{} { return [32]byte(r.SessionHash) },
		set: func(r *domain.SessionRecord, v interface{}) error {
			return setDigest(&r.SessionHash, v)
		},
		isSet: func(r domain.SessionRecord) bool { return r.SessionHash != (common.Hash{}) },
	},
}

func setDigest(dst *common.Hash, v interface{}) error {
	b, ok := v.([32]byte)
	if !ok {
		return typeErr("[32]byte", v)
	}
	*dst = common.Hash(b)
	return nil
}

func typeErr(want string, got interface{}) error {
	return fmt.Errorf("want %s, got %T", want, got)
}
