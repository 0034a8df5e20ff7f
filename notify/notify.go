// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/danielhkuo/election-tally/auth"
)

// Delivery is one one-time code to hand to the out-of-band transport
type Delivery struct {
	ChallengeID string `json:"challenge_id"`
	Purpose     string `json:"purpose"`
	Phone       string `json:"phone"`
	Code        string `json:"code"`
}

// Notifier delivers one-time codes. Implementations must not retain codes.
type Notifier interface {
	SendCode(ctx context.Context, d Delivery) error
}

// LogNotifier writes deliveries to the log. Development only: codes are
// printed in clear.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(slog.String("component", "notify-log"))}
}

func (n *LogNotifier) SendCode(ctx context.Context, d Delivery) error {
	n.log.Warn("one-time code (log delivery)",
		"challenge_id", d.ChallengeID,
		"purpose", d.Purpose,
		"phone", d.Phone,
		"code", d.Code,
	)
	return nil
}

// messageWriter is the part of *kafka.Writer the notifier uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes deliveries to a topic consumed by the SMS gateway
type KafkaNotifier struct {
	w       messageWriter
	timeout time.Duration
	log     *slog.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log *slog.Logger) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Balancer:     &kafka.Hash{},
	}
	return newKafkaNotifier(w, log)
}

func newKafkaNotifier(w messageWriter, log *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		w:       w,
		timeout: 5 * time.Second,
		log:     log.With(slog.String("component", "notify-kafka")),
	}
}

func (n *KafkaNotifier) SendCode(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode delivery: %w", err)
	}

	// The gateway drops repeats of a delivery id
	deliveryID, err := auth.GenerateID(8)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	// Keyed by phone so deliveries to one principal stay ordered
	err = n.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(d.Phone),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "purpose", Value: []byte(d.Purpose)},
			{Key: "delivery-id", Value: []byte(deliveryID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish code delivery: %w", err)
	}

	n.log.Info("one-time code published", "challenge_id", d.ChallengeID, "purpose", d.Purpose)
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.w.Close()
}
