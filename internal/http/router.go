// Package httpapi exposes the attestation pipeline over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rehabdao/attestd/internal/attest"
	"github.com/rehabdao/attestd/internal/health"
)

type Deps struct {
	Service *attest.Service
	Events  EventSource
	Health  *health.Reporter

	// Authenticate guards the mutating routes when set.
	Authenticate func(http.Handler) http.Handler
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if d.Health != nil {
		r.Get("/healthz", healthz(d.Health))
	}

	r.Route("/attestations", func(r chi.Router) {
		r.Get("/fetch", fetchAttestation(d.Service))
		r.Get("/cdp", queryAttestations(d.Service))
		if d.Events != nil {
			r.Get("/events", StreamEvents(d.Events))
		}

		r.Group(func(r chi.Router) {
			if d.Authenticate != nil {
				r.Use(d.Authenticate)
			}
			r.Post("/create", createAttestation(d.Service))
			r.Post("/cdp", updateAttestation(d.Service))
		})
	})

	return r
}
