package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"roomrelay/domain"
)

const flushTimeout = 5 * time.Second

type NATS struct {
	conn *nats.Conn
}

func NewNATS(rawURL string) (*NATS, error) {
	nc, err := nats.Connect(rawURL,
		nats.Name("roomrelay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATS{conn: nc}, nil
}

// Subscribe uses a plain core subscription: every relay instance gets every
// message, with no queue group.
func (n *NATS) Subscribe(ctx context.Context, channel string, handle func([]byte)) error {
	sub, err := n.conn.Subscribe(channel, func(m *nats.Msg) {
		handle(m.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	if err := n.conn.FlushTimeout(flushTimeout); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	<-ctx.Done()
	return sub.Unsubscribe()
}

func (n *NATS) Publish(_ context.Context, channel string, env domain.Envelope) error {
	data, err := encode(env)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(channel, data); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	if err := n.conn.FlushTimeout(flushTimeout); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (n *NATS) Close() error {
	n.conn.Close()
	return nil
}
