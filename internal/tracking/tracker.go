package tracking

import (
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/argus/internal/protocol"
	"github.com/banshee-data/argus/internal/timeutil"
)

// Entry is one record in a tracker's history.
type Entry struct {
	// Seq numbers entries per tracker starting at 1.
	Seq        uint64                 `json:"seq"`
	ReceivedAt time.Time              `json:"received_at"`
	Source     netip.AddrPort         `json:"source"`
	Record     *protocol.SensorRecord `json:"record"`
}

// Tracker accumulates the sensor records of one device.
type Tracker struct {
	key       DeviceKey
	id        string
	createdAt time.Time
	clock     timeutil.Clock
	bufSize   int

	mu          sync.Mutex
	history     []Entry
	source      netip.AddrPort
	subscribers map[string]chan Entry
	dropped     int64
	closed      bool
}

func newTracker(key DeviceKey, clock timeutil.Clock, bufSize int) *Tracker {
	return &Tracker{
		key:         key,
		id:          "trk_" + uuid.NewString(),
		createdAt:   clock.Now(),
		clock:       clock,
		bufSize:     bufSize,
		subscribers: make(map[string]chan Entry),
	}
}

// Key returns the device key the tracker was created for.
func (t *Tracker) Key() DeviceKey { return t.key }

// ID returns the tracker's session identifier, unique per process run.
func (t *Tracker) ID() string { return t.id }

// CreatedAt returns when the tracker was created.
func (t *Tracker) CreatedAt() time.Time { return t.createdAt }

// Source returns the sender address of the most recent record.
func (t *Tracker) Source() netip.AddrPort {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.source
}

// Handle appends rec to the history and notifies subscribers with the new
// entry. Notifications are sent while the lock is held so every subscriber
// sees entries in history order.
func (t *Tracker) Handle(from netip.AddrPort, rec *protocol.SensorRecord) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := Entry{
		Seq:        uint64(len(t.history)) + 1,
		ReceivedAt: t.clock.Now(),
		Source:     from,
		Record:     rec,
	}
	t.history = append(t.history, e)
	t.source = from

	for _, ch := range t.subscribers {
		select {
		case ch <- e:
		default:
			t.dropped++
		}
	}
	return e
}

// Snapshot returns a copy of the history in arrival order.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.history))
	copy(out, t.history)
	return out
}

// Tail returns a copy of the last n entries, or all of them if there are
// fewer than n.
func (t *Tracker) Tail(n int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 {
		return []Entry{}
	}
	start := max(len(t.history)-n, 0)
	out := make([]Entry, len(t.history)-start)
	copy(out, t.history[start:])
	return out
}

// Len returns the number of entries handled.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

// Last returns the most recent entry.
func (t *Tracker) Last() (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return Entry{}, false
	}
	return t.history[len(t.history)-1], true
}

// Subscribe returns a channel receiving every entry handled after the call.
// The ID is used with Unsubscribe.
func (t *Tracker) Subscribe() (string, <-chan Entry) {
	id := uuid.NewString()
	ch := make(chan Entry, t.bufSize)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		close(ch)
		return id, ch
	}
	t.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes the subscription.
func (t *Tracker) Unsubscribe(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.subscribers[id]; ok {
		close(ch)
		delete(t.subscribers, id)
	}
}

// DroppedNotifications returns how many notifications were skipped because
// a subscriber's channel was full.
func (t *Tracker) DroppedNotifications() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// close ends all subscriptions. The tracker keeps accepting records.
func (t *Tracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, ch := range t.subscribers {
		close(ch)
		delete(t.subscribers, id)
	}
}
