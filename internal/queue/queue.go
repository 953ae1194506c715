// Package queue provides the durable FIFO of user mutations that could not
// be applied while the hub was unreachable. The queue is persisted inside the
// cache document after every mutation, so a crash never loses an action and
// never duplicates one beyond a single in-flight replay.
package queue

import (
	"time"

	"github.com/google/uuid"

	"homedash/internal/cache"
	"homedash/internal/utils"
)

// ApplyFunc replays one action against the hub. The queue does not interpret
// why an action failed, only whether it did.
type ApplyFunc func(cache.PendingAction) error

// Queue is the offline action queue, backed by the persistent cache.
type Queue struct {
	store *cache.Store
}

// New creates a queue over the given store. Any actions persisted by a
// previous process are already available through the store.
func New(store *cache.Store) *Queue {
	return &Queue{store: store}
}

// Len returns the number of queued actions.
func (q *Queue) Len() int {
	return len(q.store.PendingActions())
}

// Actions returns a copy of the queued actions in enqueue order.
func (q *Queue) Actions() []cache.PendingAction {
	return q.store.PendingActions()
}

// Enqueue appends an action and persists the queue immediately. A missing ID
// or timestamp is filled in; duplicate logical actions are not de-duplicated.
func (q *Queue) Enqueue(action cache.PendingAction) {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.EnqueuedAt == 0 {
		action.EnqueuedAt = time.Now().Unix()
	}

	actions := append(q.store.PendingActions(), action)
	q.store.SetPendingActions(actions)
	utils.Infof("queued %s action (%d pending)", action.Kind, len(actions))
}

// TryApplyOrQueue attempts the action once; on failure it is enqueued for a
// later drain. Returns true when the action was applied immediately.
func (q *Queue) TryApplyOrQueue(action cache.PendingAction, apply ApplyFunc) bool {
	if err := apply(action); err != nil {
		utils.Warnf("%s failed, queueing for retry: %v", action.Kind, err)
		q.Enqueue(action)
		return false
	}
	return true
}

// Drain replays every queued action in enqueue order. Successful actions are
// removed, persisting after each removal; a failing action stays in place and
// does not block the ones behind it. Returns how many were applied and how
// many remain.
func (q *Queue) Drain(apply ApplyFunc) (applied, remaining int) {
	actions := q.store.PendingActions()
	if len(actions) == 0 {
		return 0, 0
	}

	utils.Infof("processing %d pending actions", len(actions))

	kept := make([]cache.PendingAction, 0, len(actions))
	for i, action := range actions {
		if err := apply(action); err != nil {
			utils.Warnf("pending %s failed, keeping in queue: %v", action.Kind, err)
			kept = append(kept, action)
			continue
		}
		applied++
		// Persist after every successful removal so a crash mid-drain
		// replays at most the one action in flight.
		snapshot := make([]cache.PendingAction, 0, len(actions)-i-1+len(kept))
		snapshot = append(snapshot, kept...)
		snapshot = append(snapshot, actions[i+1:]...)
		q.store.SetPendingActions(snapshot)
	}

	q.store.SetPendingActions(kept)
	if len(kept) > 0 {
		utils.Infof("%d pending actions remaining", len(kept))
	}
	return applied, len(kept)
}
