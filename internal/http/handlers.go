package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/rehabdao/attestd/internal/attest"
	"github.com/rehabdao/attestd/internal/domain"
	"github.com/rehabdao/attestd/internal/health"
	"github.com/rehabdao/attestd/internal/registry"
)

const maxBodyBytes = 64 << 10

type createRequest struct {
	SessionCompleted bool   `json:"sessionCompleted"`
	SessionDate      string `json:"sessionDate"`
	TherapistInfo    string `json:"therapistInfo"`
	PatientInfo      string `json:"patientInfo"`
	SessionDuration  uint64 `json:"sessionDuration"`
	SessionType      string `json:"sessionType"`
	Notes            string `json:"notes"`
}

type createResponse struct {
	Success        bool   `json:"success"`
	AttestationUID string `json:"attestationUID,omitempty"`
	Pending        bool   `json:"pending,omitempty"`
	TxHash         string `json:"txHash,omitempty"`
	Message        string `json:"message"`
}

type updateRequest struct {
	AttestationUID string        `json:"attestationUid"`
	Updates        domain.Update `json:"updates"`
}

type attestationView struct {
	UID            common.Hash    `json:"uid"`
	Schema         common.Hash    `json:"schema"`
	Attester       common.Address `json:"attester"`
	Recipient      common.Address `json:"recipient"`
	ExpirationTime uint64         `json:"expirationTime"`
	Revocable      bool           `json:"revocable"`
	Data           hexutil.Bytes  `json:"data"`
	Time           uint64         `json:"time"`
	RevocationTime uint64         `json:"revocationTime"`
	RefUID         common.Hash    `json:"refUID"`
}

type sessionView struct {
	SessionCompleted bool               `json:"sessionCompleted"`
	SessionDate      string             `json:"sessionDate"`
	TherapistID      common.Hash        `json:"therapistId"`
	PatientHash      common.Hash        `json:"patientHash"`
	SessionDuration  uint64             `json:"sessionDuration"`
	SessionType      domain.SessionType `json:"sessionType"`
	Timestamp        uint64             `json:"timestamp,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	SessionHash      *common.Hash       `json:"sessionHash,omitempty"`
}

func newAttestationView(a *registry.Attestation) attestationView {
	return attestationView{
		UID:            a.UID,
		Schema:         a.Schema,
		Attester:       a.Attester,
		Recipient:      a.Recipient,
		ExpirationTime: a.ExpirationTime,
		Revocable:      a.Revocable,
		Data:           a.Data,
		Time:           a.Time,
		RevocationTime: a.RevocationTime,
		RefUID:         a.RefUID,
	}
}

func newSessionView(r *domain.SessionRecord) *sessionView {
	v := &sessionView{
		SessionCompleted: r.SessionCompleted,
		SessionDate:      r.SessionDate,
		TherapistID:      r.TherapistID,
		PatientHash:      r.PatientHash,
		SessionDuration:  r.SessionDuration,
		SessionType:      r.SessionType,
		Timestamp:        r.Timestamp,
		Notes:            r.Notes,
	}
	if r.SessionHash != (common.Hash{}) {
		h := r.SessionHash
		v.SessionHash = &h
	}
	return v
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func createAttestation(svc *attest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		problems, err := validateBody(createValidator, body)
		if err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if len(problems.Missing) > 0 {
			respondError(w, "Missing required fields", http.StatusBadRequest, problems.Missing...)
			return
		}
		if !problems.ok() {
			respondError(w, "Invalid request", http.StatusBadRequest, problems.Invalid...)
			return
		}

		var req createRequest
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		res, err := svc.Create(r.Context(), attest.CreateInput{
			SessionCompleted: req.SessionCompleted,
			SessionDate:      req.SessionDate,
			TherapistInfo:    req.TherapistInfo,
			PatientInfo:      req.PatientInfo,
			SessionDuration:  req.SessionDuration,
			SessionType:      req.SessionType,
			Notes:            req.Notes,
		})

		var pending *registry.PendingError
		if errors.As(err, &pending) {
			log.Printf("attestation tx %s still pending", pending.TxHash.Hex())
			respondJSON(w, createResponse{
				Pending: true,
				TxHash:  pending.TxHash.Hex(),
				Message: "Attestation submitted; confirmation still pending",
			}, http.StatusAccepted)
			return
		}
		if err != nil {
			respondServiceError(w, err, "Failed to create attestation")
			return
		}

		respondJSON(w, createResponse{
			Success:        true,
			AttestationUID: res.UID.Hex(),
			Message:        "Session attestation created successfully",
		}, http.StatusOK)
	}
}

func fetchAttestation(svc *attest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.URL.Query().Get("uid")
		if uid == "" {
			respondError(w, "Attestation UID is required", http.StatusBadRequest)
			return
		}

		res, err := svc.Fetch(r.Context(), uid)
		if err != nil {
			respondServiceError(w, err, "Failed to fetch attestation")
			return
		}

		out := struct {
			Success       bool            `json:"success"`
			Attestation   attestationView `json:"attestation"`
			Session       *sessionView    `json:"session,omitempty"`
			SchemaVersion string          `json:"schemaVersion,omitempty"`
		}{
			Success:       true,
			Attestation:   newAttestationView(res.Attestation),
			SchemaVersion: res.Version,
		}
		if res.Session != nil {
			out.Session = newSessionView(res.Session)
		}
		respondJSON(w, out, http.StatusOK)
	}
}

func queryAttestations(svc *attest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if uid := q.Get("uid"); uid != "" {
			rec, err := svc.Lookup(r.Context(), uid)
			if err != nil {
				respondServiceError(w, err, "Failed to fetch attestation")
				return
			}
			respondJSON(w, map[string]any{
				"success":     true,
				"attestation": rec,
				"message":     "Attestation retrieved successfully",
			}, http.StatusOK)
			return
		}

		filter := domain.Filter{
			TherapistID: q.Get("therapistId"),
			PatientHash: q.Get("patientHash"),
			SessionDate: q.Get("sessionDate"),
		}
		var err error
		if filter.Limit, err = intParam(q.Get("limit")); err != nil {
			respondError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if filter.Offset, err = intParam(q.Get("offset")); err != nil {
			respondError(w, "Invalid offset", http.StatusBadRequest)
			return
		}

		records, err := svc.Query(r.Context(), filter)
		if err != nil {
			respondServiceError(w, err, "Failed to fetch attestations")
			return
		}
		respondJSON(w, map[string]any{
			"success":      true,
			"attestations": records,
			"count":        len(records),
			"message":      "Attestations retrieved successfully",
		}, http.StatusOK)
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}

func updateAttestation(svc *attest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readBody(w, r)
		if !ok {
			return
		}

		problems, err := validateBody(updateValidator, body)
		if err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if len(problems.Missing) > 0 {
			respondError(w, "Attestation UID is required", http.StatusBadRequest)
			return
		}
		if !problems.ok() {
			respondError(w, "Invalid updates", http.StatusBadRequest, problems.Invalid...)
			return
		}

		var req updateRequest
		if err := json.Unmarshal(body, &req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		rec, err := svc.Update(r.Context(), req.AttestationUID, req.Updates)
		if err != nil {
			respondServiceError(w, err, "Failed to update attestation")
			return
		}
		respondJSON(w, map[string]any{
			"success": true,
			"data":    rec,
			"message": "Attestation updated successfully",
		}, http.StatusOK)
	}
}

func healthz(rep *health.Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, rep.Report(), http.StatusOK)
	}
}
