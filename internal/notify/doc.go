// Package notify delivers human-readable task outcome messages.
//
// Delivery is best-effort: a Sink makes one attempt per message and reports
// failure to the caller, which only logs it. Messages are published as JSON
// envelopes on Redis pub/sub or a RabbitMQ exchange, or written to the
// structured log.
package notify
