// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify hands one-time codes to the out-of-band delivery transport.

This service only generates and validates codes; the SMS gateway that reaches
a principal's phone is an external collaborator. Two adapters exist:

  - KafkaNotifier publishes a JSON Delivery to a topic (keyed by phone) that
    the gateway consumes. Used when KAFKA_BROKERS is set.
  - LogNotifier logs the code. For local development only.
*/
package notify
