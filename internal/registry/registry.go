// Package registry submits encoded session records to the attestation
// registry and reads them back.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnavailable = errors.New("attestation registry not available")
	ErrNotFound    = errors.New("attestation not found")
	ErrPending     = errors.New("attestation submitted but not yet confirmed")
)

// Registry is the attestor client. Implementations are safe for concurrent use.
type Registry interface {
	Attest(ctx context.Context, req Request) (common.Hash, error)
	GetAttestation(ctx context.Context, uid common.Hash) (*Attestation, error)
	Available() bool
	Network() string
	Close()
}

// Request mirrors the registry's attestation request. NewRequest fills the
// anonymous, non-expiring, revocable defaults.
type Request struct {
	Schema         common.Hash
	Recipient      common.Address
	ExpirationTime uint64
	Revocable      bool
	RefUID         common.Hash
	Data           []byte
	Value          *big.Int
}

func NewRequest(schemaUID common.Hash, data []byte) Request {
	return Request{
		Schema:    schemaUID,
		Recipient: common.Address{},
		Revocable: true,
		Data:      data,
		Value:     big.NewInt(0),
	}
}

// Attestation is the registry's stored record.
type Attestation struct {
	UID            common.Hash    `json:"uid"`
	Schema         common.Hash    `json:"schema"`
	Time           uint64         `json:"time"`
	ExpirationTime uint64         `json:"expirationTime"`
	RevocationTime uint64         `json:"revocationTime"`
	RefUID         common.Hash    `json:"refUID"`
	Recipient      common.Address `json:"recipient"`
	Attester       common.Address `json:"attester"`
	Revocable      bool           `json:"revocable"`
	Data           []byte         `json:"data"`
}

// RejectedError carries the registry's reason for declining a submission.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("attestation rejected: %v", e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// PendingError is returned when the caller's deadline passes before the
// submission is confirmed. The transaction may still be mined.
type PendingError struct {
	TxHash common.Hash
	Err    error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("attestation tx %s pending: %v", e.TxHash.Hex(), e.Err)
}

func (e *PendingError) Unwrap() error {
	return e.Err
}

func (e *PendingError) Is(target error) bool {
	return target == ErrPending
}

// Unavailable is the handle used when the registry cannot be reached or is
// not configured. Every call fails with ErrUnavailable.
type Unavailable struct {
	Reason  string
	network string
}

func NewUnavailable(network, reason string) *Unavailable {
	return &Unavailable{Reason: reason, network: network}
}

func (u *Unavailable) Attest(context.Context, Request) (common.Hash, error) {
	return common.Hash{}, u.err()
}

func (u *Unavailable) GetAttestation(context.Context, common.Hash) (*Attestation, error) {
	return nil, u.err()
}

func (u *Unavailable) Available() bool { return false }

func (u *Unavailable) Network() string { return u.network }

func (u *Unavailable) Close() {}

func (u *Unavailable) err() error {
	if u.Reason == "" {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}
