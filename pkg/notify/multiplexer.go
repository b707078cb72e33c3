package notify

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/worldcoin/posthog-ios/core/pkg/model"
)

//nolint:errchkjson
var emptyConfigBytes, _ = json.Marshal(map[string]map[string]string{
	"flags":    {},
	"payloads": {},
})

type Payload struct {
	Flags string
}

// Multiplexer fans applied flag snapshots out to subscribers.
// Publishing never blocks: a subscriber that falls behind only keeps the latest snapshot.
type Multiplexer struct {
	subs     map[interface{}]subscription
	allFlags string // pre-calculated snapshot as a string

	mu sync.RWMutex
}

type subscription struct {
	id      interface{}
	channel chan Payload
}

func NewMux() *Multiplexer {
	return &Multiplexer{
		subs:     map[interface{}]subscription{},
		allFlags: string(emptyConfigBytes),
	}
}

// Register a subscription. The returned payload is the snapshot at registration time.
func (r *Multiplexer) Register(id interface{}) (<-chan Payload, Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.subs[id]; ok {
		close(old.channel)
	}
	sub := subscription{id: id, channel: make(chan Payload, 1)}
	r.subs[id] = sub
	return sub.channel, Payload{Flags: r.allFlags}
}

// Unregister a subscription and close its channel.
func (r *Multiplexer) Unregister(id interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subs[id]; ok {
		close(sub.channel)
		delete(r.subs, id)
	}
}

// Publish sync updates to subscriptions
func (r *Multiplexer) Publish(flags map[string]model.FlagRecord) error {
	snapshot := model.Snapshot{Flags: flags}
	bytes, err := json.Marshal(map[string]interface{}{
		"flags":    snapshot.Values(),
		"payloads": snapshot.Payloads(),
	})
	if err != nil {
		return fmt.Errorf("error marshalling: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.allFlags = string(bytes)
	payload := Payload{Flags: r.allFlags}
	for _, sub := range r.subs {
		select {
		case sub.channel <- payload:
		default:
			// drop the stale snapshot the subscriber has not read yet
			select {
			case <-sub.channel:
			default:
			}
			sub.channel <- payload
		}
	}
	return nil
}

// GetAllFlags returns the last published snapshot
func (r *Multiplexer) GetAllFlags() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.allFlags
}
