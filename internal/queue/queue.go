// Package queue holds live-socket messages addressed to users with no
// current connection, drained opportunistically once they reconnect.
package queue

import (
	"sync"
	"time"

	"github.com/campushub/notifyhub/internal/domain"
)

const (
	// DefaultMaxPerUser bounds queue growth for permanently-offline
	// recipients. When the cap is hit the oldest entry for that user is
	// dropped first.
	DefaultMaxPerUser = 100
	// DefaultMaxAge expires entries nobody came back for.
	DefaultMaxAge = 72 * time.Hour
)

type entry struct {
	msg      *domain.Message
	queuedAt time.Time
}

// DeliveryQueue is a per-recipient FIFO of undelivered live-socket messages.
// FIFO order holds within a single recipient; there is no global ordering
// across recipients.
type DeliveryQueue struct {
	mu         sync.Mutex
	byUser     map[string][]entry
	depth      int
	maxPerUser int
	maxAge     time.Duration
}

func New(maxPerUser int, maxAge time.Duration) *DeliveryQueue {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &DeliveryQueue{
		byUser:     make(map[string][]entry),
		maxPerUser: maxPerUser,
		maxAge:     maxAge,
	}
}

// Enqueue appends msg to its recipient's queue. It returns the number of
// entries dropped to stay within the per-user cap (0 or 1).
func (q *DeliveryQueue) Enqueue(msg *domain.Message, now time.Time) int {
	if msg == nil {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.byUser[msg.UserID]
	dropped := 0
	if len(list) >= q.maxPerUser {
		list = list[1:]
		dropped = 1
		q.depth--
	}
	q.byUser[msg.UserID] = append(list, entry{msg: msg, queuedAt: now})
	q.depth++
	return dropped
}

// Drain walks every queued recipient once. For recipients where online
// reports true it calls deliver per message in FIFO order and removes
// exactly the messages deliver accepted; a rejected message goes back to
// the front and blocks the ones behind it so per-recipient order survives.
// deliver runs without the queue lock held, so a slow transport never
// blocks concurrent enqueues. Returns the ids of removed messages.
func (q *DeliveryQueue) Drain(online func(userID string) bool, deliver func(msg *domain.Message) bool) []string {
	q.mu.Lock()
	batches := make(map[string][]entry)
	for userID, list := range q.byUser {
		if !online(userID) {
			continue
		}
		batches[userID] = list
		delete(q.byUser, userID)
		q.depth -= len(list)
	}
	q.mu.Unlock()

	var delivered []string
	for userID, list := range batches {
		delivered = append(delivered, q.deliverBatch(userID, list, deliver)...)
	}
	return delivered
}

// DrainUser drains a single recipient, used on connect for an immediate
// flush without waiting for the next drain cycle.
func (q *DeliveryQueue) DrainUser(userID string, deliver func(msg *domain.Message) bool) []string {
	q.mu.Lock()
	list, ok := q.byUser[userID]
	if ok {
		delete(q.byUser, userID)
		q.depth -= len(list)
	}
	q.mu.Unlock()
	if !ok {
		return nil
	}

	return q.deliverBatch(userID, list, deliver)
}

// deliverBatch attempts the checked-out entries in order and requeues the
// undelivered tail. Runs outside the queue lock.
func (q *DeliveryQueue) deliverBatch(userID string, list []entry, deliver func(msg *domain.Message) bool) []string {
	var delivered []string
	for i, e := range list {
		if !deliver(e.msg) {
			q.requeueFront(userID, list[i:])
			return delivered
		}
		delivered = append(delivered, e.msg.ID)
	}
	return delivered
}

// requeueFront puts undelivered entries back ahead of anything enqueued
// while the batch was out, preserving per-recipient FIFO order.
func (q *DeliveryQueue) requeueFront(userID string, pending []entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]entry, 0, len(pending)+len(q.byUser[userID]))
	merged = append(merged, pending...)
	merged = append(merged, q.byUser[userID]...)
	q.byUser[userID] = merged
	q.depth += len(pending)
}

// Prune drops entries older than the max age and returns how many went.
func (q *DeliveryQueue) Prune(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	pruned := 0
	for userID, list := range q.byUser {
		kept := list[:0]
		for _, e := range list {
			if now.Sub(e.queuedAt) > q.maxAge {
				pruned++
				q.depth--
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(q.byUser, userID)
		} else {
			q.byUser[userID] = kept
		}
	}
	return pruned
}

// Depth returns the total number of queued messages.
func (q *DeliveryQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// Snapshot returns a deep copy of all queued messages for checkpointing.
// The copies share no state with the live entries, so the caller can
// serialize them after the lock is gone.
func (q *DeliveryQueue) Snapshot() []*domain.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.Message, 0, q.depth)
	for _, list := range q.byUser {
		for _, e := range list {
			out = append(out, e.msg.Clone())
		}
	}
	return out
}

// Restore repopulates the queue from a snapshot, replacing current contents.
func (q *DeliveryQueue) Restore(msgs []*domain.Message, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.byUser = make(map[string][]entry, len(msgs))
	q.depth = 0
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		q.byUser[msg.UserID] = append(q.byUser[msg.UserID], entry{msg: msg, queuedAt: now})
		q.depth++
	}
}
