// internal/handler/event_bus.go
package handler

import (
	"sync"

	"go.uber.org/zap"

	"instrument-service/internal/model"
)

// EventBus fans instrument events out to WebSocket subscribers. It
// implements service.EventPublisher; a full bus drops events rather
// than blocking an instrument loop.
type EventBus struct {
	subscribers map[string][]chan *model.InstrumentEvent
	events      chan *model.InstrumentEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
	done        chan struct{}
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan *model.InstrumentEvent),
		events:      make(chan *model.InstrumentEvent, 1000),
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distribute(event)
		case <-eb.done:
			return
		}
	}
}

// Stop halts distribution
func (eb *EventBus) Stop() {
	close(eb.done)
}

// Publish enqueues an event for distribution
func (eb *EventBus) Publish(event *model.InstrumentEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", event.EventType),
			zap.String("instrument_id", event.InstrumentID),
		)
	}
}

// Subscribe returns a channel receiving events of the given type. An
// empty eventType subscribes to every event.
func (eb *EventBus) Subscribe(eventType string) <-chan *model.InstrumentEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan *model.InstrumentEvent, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// Unsubscribe removes a subscriber channel
func (eb *EventBus) Unsubscribe(eventType string, subscriber <-chan *model.InstrumentEvent) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	channels := eb.subscribers[eventType]
	for i, ch := range channels {
		if ch == subscriber {
			eb.subscribers[eventType] = append(channels[:i], channels[i+1:]...)
			close(ch)
			return
		}
	}
}

// distribute delivers an event to its type subscribers and wildcards
func (eb *EventBus) distribute(event *model.InstrumentEvent) {
	eb.mutex.RLock()
	targets := make([]chan *model.InstrumentEvent, 0,
		len(eb.subscribers[event.EventType])+len(eb.subscribers[""]))
	targets = append(targets, eb.subscribers[event.EventType]...)
	targets = append(targets, eb.subscribers[""]...)
	eb.mutex.RUnlock()

	for _, subscriber := range targets {
		select {
		case subscriber <- event:
		default:
			// slow subscriber, skip
		}
	}
}
