package redis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/redis/go-redis/v9"

	"github.com/aaronwang/auction-house/shared/models"
)

func TestHouseFromChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    uint32
		ok      bool
	}{
		{"auction_events:7", 7, true},
		{"auction_events:1", 1, true},
		{"auction_events:", 0, false},
		{"auction_events:abc", 0, false},
		{"bid_events:7", 0, false},
	}
	for _, tt := range tests {
		got, ok := houseFromChannel(tt.channel)
		check.Equal(t, tt.ok, ok)
		check.Equal(t, tt.want, got)
	}
}

func TestParseMessage(t *testing.T) {
	_, err := parseMessage("auction_events:7", "{not json")
	check.Error(t, err)

	m, err := parseMessage("auction_events:7", `{"type":"bid_placed","auction_id":3,"bid":150}`)
	assert.NoError(t, err)
	check.Equal(t, uint32(7), m.HouseID)
	check.Equal(t, models.EventBidPlaced, m.Event.Type)
	check.Equal(t, int64(150), m.Event.Bid)
}

func TestSubscriberListen(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := NewSubscriber(ctx, mr.Addr(), "", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, err)
	defer sub.Close()
	assert.NoError(t, sub.SubscribeToHouses(ctx))

	out := make(chan *Message, 4)
	done := make(chan error, 1)
	go func() { done <- sub.Listen(ctx, out) }()

	pub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer pub.Close()

	payload, err := json.Marshal(models.AuctionEvent{Type: models.EventListed, HouseID: 2, AuctionID: 9})
	assert.NoError(t, err)
	assert.NoError(t, pub.Publish(ctx, "auction_events:2", "garbage").Err())
	assert.NoError(t, pub.Publish(ctx, "auction_events:2", payload).Err())

	select {
	case m := <-out:
		check.Equal(t, uint32(2), m.HouseID)
		check.Equal(t, uint32(9), m.Event.AuctionID)
		check.Equal(t, string(payload), string(m.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		check.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop")
	}
}

func TestListenWithoutSubscription(t *testing.T) {
	mr := miniredis.RunT(t)
	sub, err := NewSubscriber(context.Background(), mr.Addr(), "", 0, nil)
	assert.NoError(t, err)
	defer sub.Close()
	check.Error(t, sub.Listen(context.Background(), make(chan *Message)))
}
