package redis

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/aaronwang/auction-house/shared/models"
)

func TestChannel(t *testing.T) {
	check.Equal(t, "auction_events:7", Channel(7))
}

func TestPublisherPublish(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	pub := NewPublisher(client, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sub := client.Subscribe(ctx, Channel(7))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	assert.NoError(t, err)

	pub.Publish(ctx, models.AuctionEvent{
		Type:      models.EventBidPlaced,
		HouseID:   7,
		AuctionID: 3,
		Bidder:    20,
		Bid:       150,
	})

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	assert.NoError(t, err)
	check.Equal(t, "auction_events:7", msg.Channel)

	var got models.AuctionEvent
	assert.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	check.Equal(t, models.EventBidPlaced, got.Type)
	check.Equal(t, uint32(3), got.AuctionID)
	check.Equal(t, int64(150), got.Bid)
	check.NotEqual(t, "", got.EventID)
}

func TestPublisherSwallowsErrors(t *testing.T) {
	mr, client := newTestClient(t)
	pub := NewPublisher(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mr.Close()

	// must not panic or block
	pub.Publish(context.Background(), models.AuctionEvent{HouseID: 1})
}
