package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"roomrelay/domain"
)

type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handle func(payload []byte)) error
}

type Broadcaster interface {
	Broadcast(orgID, roomID string, data []byte)
}

// Relay forwards room-scoped envelopes from one broker channel to the local
// subscribers of that room. Bad payloads are logged and dropped.
type Relay struct {
	sub         Subscriber
	channel     string
	broadcaster Broadcaster

	relayed atomic.Uint64
	dropped atomic.Uint64
}

func New(sub Subscriber, channel string, b Broadcaster) *Relay {
	return &Relay{sub: sub, channel: channel, broadcaster: b}
}

// Run subscribes to the channel and blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	slog.Info("relay subscribing", "channel", r.channel)
	if err := r.sub.Subscribe(ctx, r.channel, r.HandleMessage); err != nil {
		return fmt.Errorf("relay %s: %w", r.channel, err)
	}
	return nil
}

func (r *Relay) HandleMessage(raw []byte) {
	if !json.Valid(raw) {
		r.dropped.Add(1)
		slog.Warn("dropping unparseable event", "channel", r.channel, "bytes", len(raw))
		return
	}

	env, err := domain.ParseEnvelope(raw)
	if err != nil {
		r.dropped.Add(1)
		slog.Warn("dropping invalid event", "channel", r.channel, "error", err)
		return
	}

	if env.RoomID == nil {
		r.dropped.Add(1)
		slog.Debug("dropping org-wide event", "eventId", env.ID, "type", env.Type, "orgId", env.OrgID)
		return
	}

	data, err := json.Marshal(env)
	if err != nil {
		r.dropped.Add(1)
		slog.Warn("marshal error", "eventId", env.ID, "error", err)
		return
	}

	r.broadcaster.Broadcast(env.OrgID, *env.RoomID, data)
	r.relayed.Add(1)
}

// Stats reports how many events were relayed and dropped.
func (r *Relay) Stats() (relayed, dropped uint64) {
	return r.relayed.Load(), r.dropped.Load()
}
