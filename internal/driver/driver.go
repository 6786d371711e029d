package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vk/chgresrun/internal/keypath"
	"github.com/zclconf/go-cty/cty"
)

// Driver is a handle on one configured run of a preprocessing executable.
type Driver interface {
	// Name identifies the executable, e.g. "chgres_cube". It also names the
	// driver's block inside the task block and its completion marker.
	Name() string
	// RunDir returns the directory the run happens in.
	RunDir() string
	// Run blocks until the executable finishes.
	Run(ctx context.Context) error
}

// Factory builds a Driver from a resolved tree, the cycle and the key path
// of the task block.
type Factory func(ctx context.Context, tree cty.Value, cycle time.Time, path keypath.Path) (Driver, error)

// Registry maps driver names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering a name twice is a
// programming error and panics.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("driver: factory %q registered twice", name))
	}
	r.factories[name] = f
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q (registered: %v)", name, r.namesLocked())
	}
	return f, nil
}

// Names returns the registered driver names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
