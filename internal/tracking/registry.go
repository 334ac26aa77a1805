package tracking

import (
	"net/netip"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/argus/internal/monitoring"
	"github.com/banshee-data/argus/internal/protocol"
	"github.com/banshee-data/argus/internal/timeutil"
)

// DefaultSubscriberBuffer is the channel capacity used when
// RegistryConfig.SubscriberBuffer is not set.
const DefaultSubscriberBuffer = 64

// RegistryConfig contains configuration options for the registry.
type RegistryConfig struct {
	Resolver         KeyResolver    // Defaults to AddressKey
	Clock            timeutil.Clock // Defaults to RealClock
	SubscriberBuffer int            // Capacity of every notification channel
}

// Registry owns the trackers, keyed by DeviceKey.
type Registry struct {
	resolver KeyResolver
	clock    timeutil.Clock
	bufSize  int

	mu          sync.Mutex
	trackers    map[DeviceKey]*Tracker
	subscribers map[string]chan *Tracker
	dropped     int64
	closed      bool
}

// NewRegistry creates an empty registry.
func NewRegistry(config RegistryConfig) *Registry {
	resolver := config.Resolver
	if resolver == nil {
		resolver = AddressKey{}
	}
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	bufSize := config.SubscriberBuffer
	if bufSize <= 0 {
		bufSize = DefaultSubscriberBuffer
	}
	return &Registry{
		resolver:    resolver,
		clock:       clock,
		bufSize:     bufSize,
		trackers:    make(map[DeviceKey]*Tracker),
		subscribers: make(map[string]chan *Tracker),
	}
}

// GetOrCreate returns the tracker for key, creating it if needed. created is
// true for exactly one caller per key, and only that call notifies
// subscribers.
func (r *Registry) GetOrCreate(key DeviceKey) (t *Tracker, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.trackers[key]; ok {
		return t, false
	}

	t = newTracker(key, r.clock, r.bufSize)
	t.closed = r.closed
	r.trackers[key] = t
	monitoring.Logf("tracker %s added for device %s", t.ID(), key)

	for _, ch := range r.subscribers {
		select {
		case ch <- t:
		default:
			r.dropped++
		}
	}
	return t, true
}

// Get returns the tracker for key if one exists.
func (r *Registry) Get(key DeviceKey) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[key]
	return t, ok
}

// Dispatch hands rec to the tracker for key.
func (r *Registry) Dispatch(key DeviceKey, from netip.AddrPort, rec *protocol.SensorRecord) Entry {
	t, _ := r.GetOrCreate(key)
	return t.Handle(from, rec)
}

// Route resolves the device key for rec and dispatches it.
func (r *Registry) Route(from netip.AddrPort, rec *protocol.SensorRecord) Entry {
	return r.Dispatch(r.resolver.Resolve(from, rec), from, rec)
}

// Trackers returns all trackers ordered by key.
func (r *Registry) Trackers() []*Tracker {
	r.mu.Lock()
	out := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		out = append(out, t)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

// Len returns the number of trackers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// Subscribe returns a channel receiving each tracker created after the call.
func (r *Registry) Subscribe() (string, <-chan *Tracker) {
	id := uuid.NewString()
	ch := make(chan *Tracker, r.bufSize)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(ch)
		return id, ch
	}
	r.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes the subscription.
func (r *Registry) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.subscribers[id]; ok {
		close(ch)
		delete(r.subscribers, id)
	}
}

// DroppedNotifications returns how many tracker-added notifications were
// skipped because a subscriber's channel was full.
func (r *Registry) DroppedNotifications() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close ends every registry and tracker subscription. Records continue to be
// accepted and stored.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	for id, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, id)
	}
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	for _, t := range trackers {
		t.close()
	}
}
