// Package broker adapts the shared publish/subscribe channel that upstream
// producers announce events on. Redis pub/sub is the default; NATS core
// subjects work the same way for deployments that already run NATS.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"roomrelay/domain"
)

// Broker is a single channel transport. Subscribe blocks, calling handle for
// every payload in arrival order, until ctx is cancelled or the subscription
// fails. Delivery is at-most-once.
type Broker interface {
	Subscribe(ctx context.Context, channel string, handle func(payload []byte)) error
	Publish(ctx context.Context, channel string, env domain.Envelope) error
	Close() error
}

// Open picks the implementation from the URL scheme.
func Open(rawURL string) (Broker, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	switch u.Scheme {
	case "redis", "rediss", "unix":
		return NewRedis(rawURL)
	case "nats", "tls":
		return NewNATS(rawURL)
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}

func encode(env domain.Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}
