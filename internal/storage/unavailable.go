package storage

import (
	"context"
	"fmt"

	"github.com/rehabdao/attestd/internal/domain"
)

// Unavailable stands in for a store that is not configured or failed to
// open. Every call returns ErrUnavailable.
type Unavailable struct {
	Reason string
}

func NewUnavailable(reason string) *Unavailable {
	return &Unavailable{Reason: reason}
}

func (u *Unavailable) StoreAttestation(context.Context, domain.AttestationRecord) error {
	return u.err()
}

func (u *Unavailable) GetAttestations(context.Context, domain.Filter) ([]domain.AttestationRecord, error) {
	return nil, u.err()
}

func (u *Unavailable) GetAttestationByUID(context.Context, string) (domain.AttestationRecord, error) {
	return domain.AttestationRecord{}, u.err()
}

func (u *Unavailable) UpdateAttestation(context.Context, string, domain.Update) (domain.AttestationRecord, error) {
	return domain.AttestationRecord{}, u.err()
}

func (u *Unavailable) Available() bool { return false }

func (u *Unavailable) Close() error { return nil }

func (u *Unavailable) err() error {
	if u.Reason == "" {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}
