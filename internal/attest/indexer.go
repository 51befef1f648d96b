package attest

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rehabdao/attestd/internal/domain"
	"github.com/rehabdao/attestd/internal/storage"
)

var (
	ErrIndexerClosed = errors.New("indexer closed")
	ErrQueueFull     = errors.New("index queue full")
)

const (
	DefaultQueueSize = 64

	subscriberBuffer = 16
	storeTimeout     = 10 * time.Second
)

type EventType string

const (
	EventIndexed     EventType = "indexed"
	EventIndexFailed EventType = "index_failed"
	EventUpdated     EventType = "updated"
)

type Event struct {
	Type   EventType                `json:"type"`
	Record domain.AttestationRecord `json:"record"`
	Error  string                   `json:"error,omitempty"`
}

// Indexer writes attested records to the store off the request path.
// A single worker drains a bounded queue; store failures are logged and
// published, never returned to the submitter.
type Indexer struct {
	store storage.Repository
	queue chan domain.AttestationRecord
	done  chan struct{}

	mu          sync.Mutex
	closed      bool
	streamsDone bool
	subscribers map[string]chan Event
}

func NewIndexer(store storage.Repository, queueSize int) *Indexer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ix := &Indexer{
		store:       store,
		queue:       make(chan domain.AttestationRecord, queueSize),
		done:        make(chan struct{}),
		subscribers: make(map[string]chan Event),
	}

	go ix.run()

	return ix
}

// Enqueue hands a record to the worker without blocking.
func (ix *Indexer) Enqueue(rec domain.AttestationRecord) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return ErrIndexerClosed
	}

	select {
	case ix.queue <- rec:
		return nil
	default:
		log.Printf("index queue full, dropping %s", rec.AttestationUID)
		return ErrQueueFull
	}
}

func (ix *Indexer) run() {
	defer close(ix.done)

	for rec := range ix.queue {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err := ix.store.StoreAttestation(ctx, rec)
		cancel()

		if err != nil {
			log.Printf("index %s: %v", rec.AttestationUID, err)
			ix.Publish(Event{Type: EventIndexFailed, Record: rec, Error: err.Error()})
			continue
		}
		ix.Publish(Event{Type: EventIndexed, Record: rec})
	}
}

// Subscribe registers a listener. Slow listeners miss events rather than
// stall the worker.
func (ix *Indexer) Subscribe() (string, <-chan Event) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	if ix.closed || ix.streamsDone {
		close(ch)
		return id, ch
	}
	ix.subscribers[id] = ch
	return id, ch
}

func (ix *Indexer) Unsubscribe(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ch, ok := ix.subscribers[id]
	if !ok {
		return
	}
	delete(ix.subscribers, id)
	close(ch)
}

func (ix *Indexer) Publish(ev Event) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for id, ch := range ix.subscribers {
		select {
		case ch <- ev:
		default:
			log.Printf("subscriber %s lagging, dropped %s event", id, ev.Type)
		}
	}
}

// EndStreams closes every subscriber channel and refuses new subscribers.
// Records keep flowing to the store until Close.
func (ix *Indexer) EndStreams() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.streamsDone = true
	ix.closeSubscribers()
}

func (ix *Indexer) closeSubscribers() {
	for id, ch := range ix.subscribers {
		close(ch)
		delete(ix.subscribers, id)
	}
}

// Close stops accepting records, waits for the queue to drain and closes
// every subscriber channel.
func (ix *Indexer) Close() {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		<-ix.done
		return
	}
	ix.closed = true
	close(ix.queue)
	ix.mu.Unlock()

	<-ix.done

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.closeSubscribers()
}
