package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/aaronwang/auction-house/shared/models"
)

// Subscriber wraps Redis Pub/Sub functionality
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
	log    *slog.Logger
}

// Message is one auction event read from a house channel.
type Message struct {
	HouseID uint32
	Payload []byte // raw JSON, forwarded as is
	Event   models.AuctionEvent
}

// NewSubscriber creates a new Redis Pub/Sub subscriber
func NewSubscriber(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Subscriber{
		client: rdb,
		log:    logger.With("component", "subscriber"),
	}, nil
}

// SubscribeToHouses subscribes to the event channels of every house and
// waits for the server to confirm.
func (s *Subscriber) SubscribeToHouses(ctx context.Context) error {
	s.pubsub = s.client.PSubscribe(ctx, models.EventChannelPattern)
	if _, err := s.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", models.EventChannelPattern, err)
	}
	return nil
}

// Listen forwards events to out until ctx is done or the subscription
// closes. Undecodable payloads are skipped.
func (s *Subscriber) Listen(ctx context.Context, out chan<- *Message) error {
	if s.pubsub == nil {
		return errors.New("not subscribed to any channel")
	}

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			m, err := parseMessage(msg.Channel, msg.Payload)
			if err != nil {
				s.log.Warn("skipping event",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()))
				continue
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func parseMessage(channel, payload string) (*Message, error) {
	house, ok := houseFromChannel(channel)
	if !ok {
		return nil, fmt.Errorf("unexpected channel %q", channel)
	}
	var ev models.AuctionEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return &Message{HouseID: house, Payload: []byte(payload), Event: ev}, nil
}

// houseFromChannel extracts the house id from a channel name.
// Example: "auction_events:7" -> 7
func houseFromChannel(channel string) (uint32, bool) {
	s, ok := strings.CutPrefix(channel, models.EventChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// Close closes the subscriber
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		_ = s.pubsub.Close()
	}
	return s.client.Close()
}
