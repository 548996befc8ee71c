package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"roomrelay/domain"
)

type Redis struct {
	client *redis.Client
}

func NewRedis(rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

func (r *Redis) Subscribe(ctx context.Context, channel string, handle func([]byte)) error {
	pubsub := r.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed before reading
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			handle([]byte(msg.Payload))
		}
	}
}

func (r *Redis) Publish(ctx context.Context, channel string, env domain.Envelope) error {
	data, err := encode(env)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
