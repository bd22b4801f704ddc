// Package consumer delivers auction mail from JetStream into the mailbox.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aaronwang/auction-house/shared/models"
)

// DurableName is the consumer name shared by every mail-worker replica.
const DurableName = "mail-worker"

// Mailbox stores letters. InsertMail reports false for an id it has
// already stored.
type Mailbox interface {
	InsertMail(ctx context.Context, m *models.Mail) (bool, error)
}

// Config tunes the consumer.
type Config struct {
	AckWait    time.Duration // redelivery after an unacknowledged message
	RetryDelay time.Duration // redelivery after a failed insert
	// StreamWait bounds how long Start waits for the mail stream to appear.
	StreamWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.StreamWait <= 0 {
		c.StreamWait = time.Minute
	}
	return c
}

// NATSConsumer pulls mail from the AUCTION_MAIL stream and stores it.
// Messages are acknowledged only after the insert, and the insert ignores
// known ids, so every letter lands in the mailbox exactly once.
type NATSConsumer struct {
	js  jetstream.JetStream
	db  Mailbox
	cfg Config
	log *slog.Logger
}

// NewNATSConsumer creates a new NATS consumer
func NewNATSConsumer(js jetstream.JetStream, db Mailbox, cfg Config, logger *slog.Logger) *NATSConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSConsumer{
		js:  js,
		db:  db,
		cfg: cfg.withDefaults(),
		log: logger.With("component", "mail-consumer"),
	}
}

// Start consumes mail until ctx is cancelled. The auction server creates
// the stream; Start waits for it.
func (c *NATSConsumer) Start(ctx context.Context) error {
	cons, err := backoff.Retry(ctx, func() (jetstream.Consumer, error) {
		return c.js.CreateOrUpdateConsumer(ctx, models.MailStream, jetstream.ConsumerConfig{
			Durable:       DurableName,
			Description:   "Delivers auction mail into player mailboxes",
			FilterSubject: models.MailSubjects,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       c.cfg.AckWait,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.cfg.StreamWait),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Warn("waiting for mail stream",
				slog.String("error", err.Error()),
				slog.Duration("next", next))
		}))
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	defer cc.Stop()

	c.log.Info("consuming mail", slog.String("subject", models.MailSubjects))
	<-ctx.Done()
	return nil
}

// handleMessage stores one letter and settles the message.
func (c *NATSConsumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var mail models.Mail
	if err := json.Unmarshal(msg.Data(), &mail); err != nil {
		c.log.Error("undecodable mail dropped", slog.String("error", err.Error()))
		_ = msg.TermWithReason("undecodable")
		return
	}
	if mail.ID == "" {
		mail.ID = msg.Headers().Get(jetstream.MsgIDHeader)
	}
	if mail.ID == "" || mail.Recipient == 0 {
		c.log.Error("invalid mail dropped",
			slog.String("mail_id", mail.ID),
			slog.Uint64("recipient", uint64(mail.Recipient)))
		_ = msg.TermWithReason("invalid")
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	inserted, err := c.db.InsertMail(dbCtx, &mail)
	if err != nil {
		c.log.Error("failed to store mail",
			slog.String("mail_id", mail.ID),
			slog.String("error", err.Error()))
		_ = msg.NakWithDelay(c.cfg.RetryDelay)
		return
	}

	if inserted {
		c.log.Info("mail delivered",
			slog.String("mail_id", mail.ID),
			slog.String("kind", string(mail.Kind)),
			slog.Uint64("recipient", uint64(mail.Recipient)),
			slog.Uint64("auction_id", uint64(mail.AuctionID)))
	} else {
		c.log.Debug("duplicate mail ignored", slog.String("mail_id", mail.ID))
	}

	if err := msg.Ack(); err != nil {
		c.log.Warn("ack failed", slog.String("mail_id", mail.ID), slog.String("error", err.Error()))
	}
}
