// Package hasher derives pseudonymous identifiers from identifying strings.
package hasher

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrEmptyInput = errors.New("identifying input is empty")

// Hash returns keccak-256 over the UTF-8 bytes of input. The input is
// hashed exactly as given; blank input is rejected.
func Hash(input string) (common.Hash, error) {
	if strings.TrimSpace(input) == "" {
		return common.Hash{}, ErrEmptyInput
	}
	return crypto.Keccak256Hash([]byte(input)), nil
}

func HashTherapist(info string) (common.Hash, error) {
	return Hash(info)
}

func HashPatient(info string) (common.Hash, error) {
	return Hash(info)
}

// SessionHash binds a therapist, a patient and a date into one digest
// without revealing any of them.
func SessionHash(therapistID, patientHash common.Hash, sessionDate string) common.Hash {
	return crypto.Keccak256Hash(therapistID.Bytes(), patientHash.Bytes(), []byte(sessionDate))
}

// Hex renders a digest as 0x followed by 64 lowercase hex characters.
func Hex(h common.Hash) string {
	return h.Hex()
}
