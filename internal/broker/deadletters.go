package broker

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeadLetter is a non-destructive view of a parked message.
type DeadLetter struct {
	MessageID   string          `json:"message_id"`
	Exchange    string          `json:"exchange"`
	RoutingKey  string          `json:"routing_key"`
	SourceQueue string          `json:"source_queue,omitempty"`
	RetryCount  int             `json:"retry_count"`
	Body        json.RawMessage `json:"body"`
	Timestamp   time.Time       `json:"timestamp,omitempty"`
}

// PeekDeadLetters reads up to limit messages from the dead letter queue
// without consuming them. Messages are fetched unacked on a throwaway
// channel; closing the channel hands them all back to the queue.
func (c *Connection) PeekDeadLetters(limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 20
	}
	ch, err := c.Channel()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ch.Close() }()

	out := make([]DeadLetter, 0, limit)
	for len(out) < limit {
		d, ok, err := ch.Get(DeadLetterQueue, false)
		if err != nil {
			return nil, fmt.Errorf("peek dead letters: %w", err)
		}
		if !ok {
			break
		}
		body := json.RawMessage(d.Body)
		if !json.Valid(body) {
			// Poison bodies are rarely JSON; quote them so the envelope stays valid.
			body, _ = json.Marshal(string(d.Body))
		}
		dl := DeadLetter{
			MessageID:  d.MessageId,
			Exchange:   d.Exchange,
			RoutingKey: d.RoutingKey,
			RetryCount: retryCountFrom(d.Headers),
			Body:       body,
		}
		if !d.Timestamp.IsZero() {
			dl.Timestamp = d.Timestamp.UTC()
		}
		if q, ok := d.Headers["x-first-death-queue"].(string); ok {
			dl.SourceQueue = q
		}
		out = append(out, dl)
	}
	return out, nil
}
