package realtime

import (
	"sync"

	"github.com/Xavierrodgriues/vacancyamerica-backend/internal/metrics"
	"github.com/Xavierrodgriues/vacancyamerica-backend/pkg/logger"
)

// Sink performs the actual delivery of an event to a user's channel
type Sink interface {
	Deliver(userID, event string, payload interface{})
}

type delivery struct {
	userID  string
	event   string
	payload interface{}
}

// Hub decouples request handlers from delivery. Publish only enqueues; a
// single worker drains the queue into the sink in publish order. When the
// queue is full the event is dropped, so a slow channel can never stall or
// fail the request that produced the event.
type Hub struct {
	sink  Sink
	queue chan delivery

	startOnce sync.Once
	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func NewHub(sink Sink, size int) *Hub {
	if size <= 0 {
		size = 1024
	}
	return &Hub{
		sink:   sink,
		queue:  make(chan delivery, size),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the delivery worker
func (h *Hub) Start() {
	h.startOnce.Do(func() { go h.run() })
}

// Publish implements services.Publisher
func (h *Hub) Publish(userID, event string, payload interface{}) {
	if userID == "" {
		return
	}
	select {
	case <-h.closed:
		metrics.RealtimeEvents.WithLabelValues(event, "dropped").Inc()
		return
	default:
	}

	select {
	case h.queue <- delivery{userID: userID, event: event, payload: payload}:
	default:
		metrics.RealtimeEvents.WithLabelValues(event, "dropped").Inc()
		logger.Warn().Str("event", event).Str("user_id", userID).Msg("realtime queue full, event dropped")
	}
}

// Close stops accepting events and waits for queued ones to drain
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.closed)
	})
	// a hub that never started still drains what was queued
	h.startOnce.Do(func() { go h.run() })
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case d := <-h.queue:
			h.deliver(d)
		case <-h.closed:
			for {
				select {
				case d := <-h.queue:
					h.deliver(d)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("event", d.event).Msg("realtime delivery panicked")
		}
	}()
	h.sink.Deliver(d.userID, d.event, d.payload)
}
