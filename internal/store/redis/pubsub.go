package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gosuda/actrec/internal/domain"
)

type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

// Snapshots returns a persister that keeps the activity log under key.
func (ps *PubSub) Snapshots(key string) *SnapshotStore {
	return &SnapshotStore{client: ps.client, key: key}
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// PublishEvent announces an appended event on its category channel.
func (ps *PubSub) PublishEvent(ctx context.Context, c domain.Category, ev domain.Event) error {
	payload, err := EncodeTail(c, ev)
	if err != nil {
		return fmt.Errorf("redis.PubSub.PublishEvent: %w", err)
	}
	return ps.Publish(ctx, ActivityChannel(c), payload)
}

func (ps *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channels...)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// TailMessage is the live-tail wire format: one appended event and its category.
type TailMessage struct {
	Category domain.Category `json:"category"`
	Event    domain.Event    `json:"event"`
}

// EncodeTail serializes an appended event for the live tail.
func EncodeTail(c domain.Category, ev domain.Event) ([]byte, error) {
	payload, err := json.Marshal(TailMessage{Category: c, Event: ev})
	if err != nil {
		return nil, fmt.Errorf("encode tail: %w", err)
	}
	return payload, nil
}

// ActivityChannel returns the Redis channel name for a category's live tail.
func ActivityChannel(c domain.Category) string {
	return "activity:" + string(c)
}

// ActivityChannels returns the channels for the given categories, or for all
// categories when none are given.
func ActivityChannels(categories ...domain.Category) []string {
	if len(categories) == 0 {
		categories = domain.Categories()
	}
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, ActivityChannel(c))
	}
	return out
}
