// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a deadline on the write context")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaNotifier_SendCode(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w, slog.Default())

	d := Delivery{ChallengeID: "ch-1", Purpose: "principal1", Phone: "+15550001", Code: "123456"}
	if err := n.SendCode(context.Background(), d); err != nil {
		t.Fatalf("SendCode() error = %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "+15550001" {
		t.Errorf("Expected message keyed by phone, got %s", msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["purpose"] != "principal1" {
		t.Errorf("purpose header = %q, want principal1", headers["purpose"])
	}
	if len(headers["delivery-id"]) != 16 {
		t.Errorf("delivery-id header = %q, want 16 hex chars", headers["delivery-id"])
	}

	var got Delivery
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("Failed to decode payload: %v", err)
	}
	if got != d {
		t.Errorf("Payload = %+v, want %+v", got, d)
	}

	if err := n.Close(); err != nil || !w.closed {
		t.Error("Close() did not close the writer")
	}
}

func TestKafkaNotifier_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	n := newKafkaNotifier(w, slog.Default())

	err := n.SendCode(context.Background(), Delivery{Phone: "+1", Code: "000000"})
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Errorf("Expected wrapped broker error, got %v", err)
	}
}

func TestLogNotifier_SendCode(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := n.SendCode(context.Background(), Delivery{ChallengeID: "ch-2", Phone: "+15550002", Code: "654321"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "ch-2") || !strings.Contains(out, "654321") {
		t.Errorf("Expected delivery in log output, got %q", out)
	}
}
