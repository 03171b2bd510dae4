package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventOrderAuthorized   EventType = "ORDER_AUTHORIZED"
	EventOrderRejected     EventType = "ORDER_REJECTED"
	EventOrderExecuted     EventType = "ORDER_EXECUTED"
	EventOrderFailed       EventType = "ORDER_FAILED"
	EventPositionClosed    EventType = "POSITION_CLOSED"
	EventViolationReported EventType = "VIOLATION_REPORTED"
	EventCooldownStarted   EventType = "COOLDOWN_STARTED"
	EventSetupLocked       EventType = "SETUP_LOCKED"
	EventSymbolsSynced     EventType = "SYMBOLS_SYNCED"
	EventPolicyOverride    EventType = "POLICY_OVERRIDE"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	AccountID string                 `json:"account_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking publishers
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}
