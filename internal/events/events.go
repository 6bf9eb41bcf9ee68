// Package events publishes catalog and library domain events to the
// configured message queue. Publishing is best effort: failures are logged
// and never surface to the caller.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gamevault/apiserver/internal/logging"
)

const (
	CatalogChannel = "gamevault.catalog"
	LibraryChannel = "gamevault.library"
)

// Type identifies what happened.
type Type string

const (
	GameCreated    Type = "game.created"
	GameUpdated    Type = "game.updated"
	GameDeleted    Type = "game.deleted"
	LibraryAdded   Type = "library.added"
	LibraryRemoved Type = "library.removed"
)

// Event is the JSON payload published for every domain change.
type Event struct {
	Type   Type      `json:"type"`
	GameID int       `json:"gameId"`
	UserID int       `json:"userId,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher is satisfied by *mq.MQ.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Emitter serializes events and hands them to a Publisher.
type Emitter struct {
	pub    Publisher
	logger logging.Logger
	now    func() time.Time
}

// NewEmitter constructs an Emitter publishing through pub. A nil pub disables emission.
func NewEmitter(pub Publisher, logger logging.Logger) *Emitter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Emitter{pub: pub, logger: logger, now: time.Now}
}

// Emit publishes ev on channel, stamping At when unset.
func (e *Emitter) Emit(ctx context.Context, channel string, ev Event) {
	if e == nil || e.pub == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error(ctx, "failed to encode event", "type", ev.Type, "error", err)
		return
	}

	id, err := e.pub.Publish(ctx, channel, data, map[string]string{"type": string(ev.Type)})
	if err != nil {
		e.logger.Warn(ctx, "failed to publish event", "channel", channel, "type", ev.Type, "error", err)
		return
	}
	e.logger.Debug(ctx, "event published", "channel", channel, "type", ev.Type, "message_id", id)
}

// Decode parses an event payload.
func Decode(data []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(data, &ev)
	return ev, err
}
