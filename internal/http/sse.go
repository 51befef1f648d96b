package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rehabdao/attestd/internal/attest"
	"github.com/rehabdao/attestd/internal/domain"
)

// EventSource is the indexer's subscription side.
type EventSource interface {
	Subscribe() (string, <-chan attest.Event)
	Unsubscribe(id string)
}

// StreamEvents pushes index events as Server-Sent Events. The optional
// therapistId, patientHash and sessionDate query parameters narrow the
// stream the same way they narrow a query.
func StreamEvents(src EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		q := r.URL.Query()
		filter := domain.Filter{
			TherapistID: q.Get("therapistId"),
			PatientHash: q.Get("patientHash"),
			SessionDate: q.Get("sessionDate"),
		}.Normalize()

		id, events := src.Subscribe()
		defer src.Unsubscribe(id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if !filter.Matches(ev.Record) {
					continue
				}

				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				w.Write([]byte("event: " + string(ev.Type) + "\n"))
				w.Write([]byte("data: "))
				w.Write(data)
				w.Write([]byte("\n\n"))

				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}
