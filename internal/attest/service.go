// Package attest runs the attestation pipeline: hash the identifying
// input, encode the session, submit it to the registry and index the
// result.
package attest

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rehabdao/attestd/internal/domain"
	"github.com/rehabdao/attestd/internal/hasher"
	"github.com/rehabdao/attestd/internal/registry"
	"github.com/rehabdao/attestd/internal/schema"
	"github.com/rehabdao/attestd/internal/storage"
)

const DefaultSubmitTimeout = 2 * time.Minute

const tracerName = "github.com/rehabdao/attestd/internal/attest"

// CreateInput is the raw session form. TherapistInfo and PatientInfo are
// hashed before anything else touches them.
type CreateInput struct {
	SessionCompleted bool
	SessionDate      string
	TherapistInfo    string
	PatientInfo      string
	SessionDuration  uint64
	SessionType      string
	Notes            string
}

type CreateResult struct {
	UID    common.Hash
	Record domain.AttestationRecord
}

// FetchResult is a registry attestation plus its decoded session when the
// data matches a known schema version.
type FetchResult struct {
	Attestation *registry.Attestation
	Session     *domain.SessionRecord
	Version     string
}

type Config struct {
	Schema        *schema.Schema
	SchemaUID     common.Hash
	SubmitTimeout time.Duration
}

type Service struct {
	registry registry.Registry
	store    storage.Repository
	indexer  *Indexer

	schema        *schema.Schema
	schemaUID     common.Hash
	submitTimeout time.Duration

	tracer trace.Tracer
	now    func() time.Time
}

func NewService(reg registry.Registry, store storage.Repository, indexer *Indexer, cfg Config) (*Service, error) {
	if cfg.Schema == nil {
		return nil, errors.New("schema is required")
	}
	if cfg.SchemaUID == (common.Hash{}) {
		return nil, errors.New("schema uid is required")
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	return &Service{
		registry:      reg,
		store:         store,
		indexer:       indexer,
		schema:        cfg.Schema,
		schemaUID:     cfg.SchemaUID,
		submitTimeout: cfg.SubmitTimeout,
		tracer:        otel.Tracer(tracerName),
		now:           time.Now,
	}, nil
}

func (s *Service) RegistryAvailable() bool { return s.registry.Available() }

func (s *Service) StoreAvailable() bool { return s.store.Available() }

func (s *Service) Network() string { return s.registry.Network() }

func (s *Service) SchemaVersion() string { return s.schema.Version }

// Create validates, hashes, encodes and submits one session. Validation
// failures return before the registry is contacted. Indexing is
// best-effort and never fails a confirmed attestation.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "attest.create",
		trace.WithAttributes(
			attribute.String("schema.version", s.schema.Version),
			attribute.String("enduser.id", Subject(ctx)),
		))
	defer span.End()

	rec, err := s.buildRecord(in)
	if err != nil {
		return CreateResult{}, fail(span, err)
	}

	data, err := s.schema.Encode(rec)
	if err != nil {
		return CreateResult{}, fail(span, err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	uid, err := s.registry.Attest(submitCtx, registry.NewRequest(s.schemaUID, data))
	if err != nil {
		return CreateResult{}, fail(span, err)
	}
	span.SetAttributes(attribute.String("attestation.uid", uid.Hex()))

	out := domain.NewAttestationRecord(uid, rec, s.registry.Network(), s.schemaUID, s.now())
	log.Printf("attested session %s under schema %s for %s", uid.Hex(), s.schema.Version, callerName(ctx))

	if s.indexer != nil && s.store.Available() {
		if err := s.indexer.Enqueue(out); err != nil {
			log.Printf("attestation %s not indexed: %v", uid.Hex(), err)
		}
	}

	return CreateResult{UID: uid, Record: out}, nil
}

func (s *Service) buildRecord(in CreateInput) (domain.SessionRecord, error) {
	if err := domain.ValidateDate(in.SessionDate); err != nil {
		return domain.SessionRecord{}, err
	}
	sessionType, err := domain.ParseSessionType(in.SessionType)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if in.SessionDuration == 0 {
		return domain.SessionRecord{}, &domain.ValidationError{Field: "sessionDuration", Err: domain.ErrInvalidDuration}
	}
	if in.Notes != "" && !s.schema.Has("notes") {
		return domain.SessionRecord{}, &domain.ValidationError{Field: "notes", Err: schema.ErrFieldNotInSchema}
	}

	therapistID, err := hasher.HashTherapist(in.TherapistInfo)
	if err != nil {
		return domain.SessionRecord{}, &domain.ValidationError{Field: "therapistInfo", Err: err}
	}
	patientHash, err := hasher.HashPatient(in.PatientInfo)
	if err != nil {
		return domain.SessionRecord{}, &domain.ValidationError{Field: "patientInfo", Err: err}
	}

	rec := domain.SessionRecord{
		SessionCompleted: in.SessionCompleted,
		SessionDate:      in.SessionDate,
		TherapistID:      therapistID,
		PatientHash:      patientHash,
		SessionDuration:  in.SessionDuration,
		SessionType:      sessionType,
	}
	if s.schema.Has("sessionHash") {
		rec.Timestamp = uint64(s.now().Unix())
		rec.Notes = in.Notes
		rec.SessionHash = hasher.SessionHash(therapistID, patientHash, in.SessionDate)
	}
	return rec, nil
}

// Fetch reads an attestation from the registry and decodes it with the
// first registered schema whose UID matches, falling back to the active one.
func (s *Service) Fetch(ctx context.Context, rawUID string) (FetchResult, error) {
	ctx, span := s.tracer.Start(ctx, "attest.fetch")
	defer span.End()

	uid, err := domain.ParseDigest("uid", rawUID)
	if err != nil {
		return FetchResult{}, fail(span, err)
	}
	span.SetAttributes(attribute.String("attestation.uid", uid.Hex()))

	att, err := s.registry.GetAttestation(ctx, uid)
	if err != nil {
		return FetchResult{}, fail(span, err)
	}

	res := FetchResult{Attestation: att}
	for _, sc := range s.decoders(att.Schema) {
		rec, err := sc.Decode(att.Data)
		if err != nil {
			continue
		}
		res.Session = &rec
		res.Version = sc.Version
		break
	}
	return res, nil
}

func (s *Service) decoders(schemaUID common.Hash) []*schema.Schema {
	var out []*schema.Schema
	if schemaUID == s.schemaUID {
		out = append(out, s.schema)
	}
	for _, v := range schema.Versions() {
		sc, err := schema.Lookup(v)
		if err != nil || sc.Version == s.schema.Version {
			continue
		}
		if sc.UID(common.Address{}, true) == schemaUID {
			out = append(out, sc)
		}
	}
	if len(out) == 0 {
		out = append(out, s.schema)
	}
	return out
}

// Query lists indexed records matching every set filter field.
func (s *Service) Query(ctx context.Context, filter domain.Filter) ([]domain.AttestationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "attest.query",
		trace.WithAttributes(
			attribute.Bool("filter.therapist", filter.TherapistID != ""),
			attribute.Bool("filter.patient", filter.PatientHash != ""),
			attribute.Bool("filter.date", filter.SessionDate != ""),
		))
	defer span.End()

	records, err := s.store.GetAttestations(ctx, filter)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("result.count", len(records)))
	return records, nil
}

func (s *Service) Lookup(ctx context.Context, uid string) (domain.AttestationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "attest.query",
		trace.WithAttributes(attribute.String("attestation.uid", strings.ToLower(uid))))
	defer span.End()

	rec, err := s.store.GetAttestationByUID(ctx, uid)
	if err != nil {
		return rec, fail(span, err)
	}
	return rec, nil
}

// Update changes the indexed copy only. The registry attestation is
// immutable and keeps its original values.
func (s *Service) Update(ctx context.Context, uid string, update domain.Update) (domain.AttestationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "attest.update",
		trace.WithAttributes(
			attribute.String("attestation.uid", strings.ToLower(uid)),
			attribute.String("enduser.id", Subject(ctx)),
		))
	defer span.End()

	rec, err := s.store.UpdateAttestation(ctx, uid, update)
	if err != nil {
		return rec, fail(span, err)
	}
	log.Printf("updated indexed attestation %s for %s", rec.AttestationUID, callerName(ctx))
	if s.indexer != nil {
		s.indexer.Publish(Event{Type: EventUpdated, Record: rec})
	}
	return rec, nil
}

func callerName(ctx context.Context) string {
	if s := Subject(ctx); s != "" {
		return s
	}
	return "unknown caller"
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

