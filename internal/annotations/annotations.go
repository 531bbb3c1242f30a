package annotations

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/floww-app/chatkit/internal/stats"
)

// Kind distinguishes what a pin is attached to.
type Kind string

const (
	KindMessage Kind = "message"
	KindChat    Kind = "chat"
)

// Pin durations offered by the UI. Any other duration is rejected.
const (
	PinDay   = 24 * time.Hour
	PinWeek  = 7 * 24 * time.Hour
	PinMonth = 30 * 24 * time.Hour
)

const sweepInterval = 60 * time.Second

// Annotation is a pin with an absolute expiry.
type Annotation struct {
	TargetId string    `json:"target_id"`
	Kind     Kind      `json:"kind"`
	PinnedAt time.Time `json:"pinned_at"`
	Expiry   time.Time `json:"expiry"`
}

type key struct {
	target string
	kind   Kind
}

// Manager tracks pinned messages/chats with time-based expiry plus
// favourites, which never expire. One annotation exists per (target, kind);
// re-pinning replaces the previous annotation including its expiry.
type Manager struct {
	log   *log.Logger
	stats stats.Provider

	mu    sync.Mutex
	pins  map[key]Annotation
	faves map[key]struct{}

	now func() time.Time
}

func NewManager(logger *log.Logger, sp stats.Provider) *Manager {
	return &Manager{
		log:   logger,
		stats: sp,
		pins:  make(map[key]Annotation),
		faves: make(map[key]struct{}),
		now:   time.Now,
	}
}

// Pin stores one annotation for (target, kind) expiring after duration.
func (m *Manager) Pin(targetId string, kind Kind, duration time.Duration) error {
	switch duration {
	case PinDay, PinWeek, PinMonth:
	default:
		return fmt.Errorf("invalid pin duration %s", duration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pins[key{targetId, kind}] = Annotation{
		TargetId: targetId,
		Kind:     kind,
		PinnedAt: now,
		Expiry:   now.Add(duration),
	}

	return nil
}

// Unpin removes the annotation regardless of expiry. Idempotent.
func (m *Manager) Unpin(targetId string, kind Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pins, key{targetId, kind})
}

// Get returns the live annotation for (target, kind). An expired annotation
// is never returned, even before the sweep has removed it.
func (m *Manager) Get(targetId string, kind Kind) (Annotation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ann, ok := m.pins[key{targetId, kind}]
	if !ok || !ann.Expiry.After(m.now()) {
		return Annotation{}, false
	}

	return ann, true
}

// Pinned reports whether a live annotation exists for (target, kind).
func (m *Manager) Pinned(targetId string, kind Kind) bool {
	_, ok := m.Get(targetId, kind)
	return ok
}

// Pins returns all live annotations of a kind.
func (m *Manager) Pins(kind Kind) []Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var out []Annotation
	for k, ann := range m.pins {
		if k.kind == kind && ann.Expiry.After(now) {
			out = append(out, ann)
		}
	}

	return out
}

// Sweep removes every annotation whose expiry has passed. Idempotent and
// side-effect-free when nothing has expired. Returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var removed int
	for k, ann := range m.pins {
		if !ann.Expiry.After(now) {
			delete(m.pins, k)
			removed++
		}
	}

	if removed > 0 {
		m.log.Printf("swept %d expired annotations", removed)
		m.stats.Incr(stats.AnnotationsSwept)
	}

	return removed
}

// ToggleFavourite flips the favourite flag for (target, kind) and reports
// the new state.
func (m *Manager) ToggleFavourite(targetId string, kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{targetId, kind}
	if _, ok := m.faves[k]; ok {
		delete(m.faves, k)
		return false
	}

	m.faves[k] = struct{}{}
	return true
}

// IsFavourite reports whether (target, kind) is a favourite.
func (m *Manager) IsFavourite(targetId string, kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.faves[key{targetId, kind}]
	return ok
}

// Run sweeps eagerly once, then every minute until the context is cancelled.
// The sweep never blocks message operations; it holds only the manager's own
// lock.
func (m *Manager) Run(ctx context.Context) {
	m.Sweep()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
