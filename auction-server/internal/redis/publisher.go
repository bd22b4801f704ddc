package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aaronwang/auction-house/shared/models"
)

// Publisher broadcasts auction events on Redis Pub/Sub. The broadcast
// service forwards them to WebSocket clients.
type Publisher struct {
	client *redis.Client
	log    *slog.Logger
}

// NewPublisher wraps a connected client.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, log: logger.With("component", "event_publisher")}
}

// Channel returns the Pub/Sub channel of a house.
func Channel(house uint32) string {
	return fmt.Sprintf("%s%d", models.EventChannelPrefix, house)
}

// Publish implements auction.EventPublisher. Live viewers are best effort,
// so failures are logged and dropped.
func (p *Publisher) Publish(ctx context.Context, ev models.AuctionEvent) {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("failed to marshal event", slog.String("error", err.Error()))
		return
	}
	if err := p.client.Publish(ctx, Channel(ev.HouseID), payload).Err(); err != nil {
		p.log.Warn("failed to publish event",
			slog.String("type", ev.Type),
			slog.Uint64("auction_id", uint64(ev.AuctionID)),
			slog.String("error", err.Error()))
	}
}
