package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one upstream. Zero times mean
// the event has not happened since the process started.
type ProviderHealth struct {
	Name                string
	State               gobreaker.State
	Requests            uint32
	ConsecutiveFailures uint32
	LastSuccessAt       time.Time
	LastFailureAt       time.Time
	StateChangedAt      time.Time
	LastError           string
}

// Available reports whether requests currently reach the upstream.
func (h ProviderHealth) Available() bool {
	return h.State != gobreaker.StateOpen
}

// Registry tracks the upstream clients of one process. Clients join it
// through ClientConfig.Registry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	client         *Client
	lastSuccessAt  time.Time
	lastFailureAt  time.Time
	stateChangedAt time.Time
	lastError      string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (r *Registry) track(name string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{client: c}
}

func (r *Registry) recordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.lastSuccessAt = r.now()
	}
}

func (r *Registry) recordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.lastFailureAt = r.now()
		e.lastError = err.Error()
	}
}

// recordTransition runs inside the breaker's own lock, so the registry must
// never hold r.mu while calling into a breaker.
func (r *Registry) recordTransition(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.stateChangedAt = r.now()
	}
}

// Health returns the view of one upstream.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	var snapshot entry
	if ok {
		snapshot = *e
	}
	r.mu.RUnlock()

	if !ok {
		return ProviderHealth{}, false
	}
	return snapshot.health(name), true
}

// All returns every upstream sorted by name.
func (r *Registry) All() []ProviderHealth {
	r.mu.RLock()
	snapshots := make(map[string]entry, len(r.entries))
	for name, e := range r.entries {
		snapshots[name] = *e
	}
	r.mu.RUnlock()

	health := make([]ProviderHealth, 0, len(snapshots))
	for name, e := range snapshots {
		health = append(health, e.health(name))
	}
	sort.Slice(health, func(i, j int) bool {
		return health[i].Name < health[j].Name
	})
	return health
}

// Names returns the registered upstream names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e entry) health(name string) ProviderHealth {
	counts := e.client.Counts()
	return ProviderHealth{
		Name:                name,
		State:               e.client.State(),
		Requests:            counts.Requests,
		ConsecutiveFailures: counts.ConsecutiveFailures,
		LastSuccessAt:       e.lastSuccessAt,
		LastFailureAt:       e.lastFailureAt,
		StateChangedAt:      e.stateChangedAt,
		LastError:           e.lastError,
	}
}
