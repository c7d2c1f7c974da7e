package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty indicates no ticket was available within the poll window.
var ErrEmpty = errors.New("queue empty")

// TriageQueue is a Redis-backed FIFO of ticket ids awaiting triage.
// Producers push from request handlers; workers pop and run the pipeline
// so long stage chains stay off the request path.
type TriageQueue struct {
	client *redis.Client
	key    string
}

// NewTriageQueue creates a queue over the given Redis client and list key.
func NewTriageQueue(client *redis.Client, key string) *TriageQueue {
	return &TriageQueue{client: client, key: key}
}

// Enqueue pushes a ticket id onto the queue.
func (q *TriageQueue) Enqueue(ctx context.Context, ticketID string) error {
	return q.client.LPush(ctx, q.key, ticketID).Err()
}

// Dequeue blocks up to timeout for the next ticket id. Returns ErrEmpty
// when the window elapses with nothing queued.
func (q *TriageQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	values, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		return "", err
	}
	// BRPop returns [key, value].
	if len(values) < 2 {
		return "", ErrEmpty
	}
	return values[1], nil
}

// Depth reports the number of pending ticket ids.
func (q *TriageQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
