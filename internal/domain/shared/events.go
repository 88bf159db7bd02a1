package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Subscribers use them to keep caches and read models in
// line with committed score changes.
const (
	EventPlayerRegistered EventType = "player.registered"
	EventGameSaved        EventType = "game.saved"
	EventGameDeleted      EventType = "game.deleted"
	EventDailyRecomputed  EventType = "daily.recomputed"
	EventDailyRebuilt     EventType = "daily.rebuilt"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Player Events
// ═══════════════════════════════════════════════════════════════════════════

// PlayerRegisteredEvent is emitted when a new player joins the club.
type PlayerRegisteredEvent struct {
	BaseEvent
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// Payload implements Event interface.
func (e PlayerRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"player_id": e.PlayerID,
		"name":      e.Name,
	}
}

// NewPlayerRegisteredEvent creates a new PlayerRegisteredEvent.
func NewPlayerRegisteredEvent(playerID, name string) PlayerRegisteredEvent {
	return PlayerRegisteredEvent{
		BaseEvent: NewBaseEvent(EventPlayerRegistered, playerID),
		PlayerID:  playerID,
		Name:      name,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Game Events
// ═══════════════════════════════════════════════════════════════════════════

// GameSavedEvent is emitted after a game and its results were committed.
// PreviousDate is set when an edit moved the game to another date.
type GameSavedEvent struct {
	BaseEvent
	GameID       string   `json:"game_id"`
	Date         string   `json:"date"`
	PreviousDate string   `json:"previous_date,omitempty"`
	PlayerIDs    []string `json:"player_ids"`
	Rounds       int      `json:"rounds"`
	Created      bool     `json:"created"`
}

// Payload implements Event interface.
func (e GameSavedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"game_id":       e.GameID,
		"date":          e.Date,
		"previous_date": e.PreviousDate,
		"player_ids":    e.PlayerIDs,
		"rounds":        e.Rounds,
		"created":       e.Created,
	}
}

// NewGameSavedEvent creates a new GameSavedEvent.
func NewGameSavedEvent(gameID, date, previousDate string, playerIDs []string, rounds int, created bool) GameSavedEvent {
	return GameSavedEvent{
		BaseEvent:    NewBaseEvent(EventGameSaved, gameID),
		GameID:       gameID,
		Date:         date,
		PreviousDate: previousDate,
		PlayerIDs:    playerIDs,
		Rounds:       rounds,
		Created:      created,
	}
}

// GameDeletedEvent is emitted after a game and its results were removed.
type GameDeletedEvent struct {
	BaseEvent
	GameID    string   `json:"game_id"`
	Date      string   `json:"date"`
	PlayerIDs []string `json:"player_ids"`
}

// Payload implements Event interface.
func (e GameDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"game_id":    e.GameID,
		"date":       e.Date,
		"player_ids": e.PlayerIDs,
	}
}

// NewGameDeletedEvent creates a new GameDeletedEvent.
func NewGameDeletedEvent(gameID, date string, playerIDs []string) GameDeletedEvent {
	return GameDeletedEvent{
		BaseEvent: NewBaseEvent(EventGameDeleted, gameID),
		GameID:    gameID,
		Date:      date,
		PlayerIDs: playerIDs,
	}
}

// DailyRecomputedEvent is emitted when the summaries of a date were replaced.
type DailyRecomputedEvent struct {
	BaseEvent
	Date    string `json:"date"`
	Players int    `json:"players"`
}

// Payload implements Event interface.
func (e DailyRecomputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"date":    e.Date,
		"players": e.Players,
	}
}

// NewDailyRecomputedEvent creates a new DailyRecomputedEvent.
func NewDailyRecomputedEvent(date string, players int) DailyRecomputedEvent {
	return DailyRecomputedEvent{
		BaseEvent: NewBaseEvent(EventDailyRecomputed, date),
		Date:      date,
		Players:   players,
	}
}

// DailyRebuiltEvent is emitted once after a rebuild run replaced the
// summaries of one or more dates.
type DailyRebuiltEvent struct {
	BaseEvent
	Rebuilt int `json:"rebuilt"`
	Cleared int `json:"cleared"`
}

// Payload implements Event interface.
func (e DailyRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"rebuilt": e.Rebuilt,
		"cleared": e.Cleared,
	}
}

// NewDailyRebuiltEvent creates a new DailyRebuiltEvent.
func NewDailyRebuiltEvent(rebuilt, cleared int) DailyRebuiltEvent {
	return DailyRebuiltEvent{
		BaseEvent: NewBaseEvent(EventDailyRebuilt, "daily"),
		Rebuilt:   rebuilt,
		Cleared:   cleared,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
