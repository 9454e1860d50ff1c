// Package adapter describes application data categories: which consistency
// model governs them, how concurrent writes merge, how values are encoded,
// and how urgently they must reach the cloud.
package adapter

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/edgesync/internal/models"
)

// Priority bounds
const (
	MinPriority = 1
	MaxPriority = 10
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidCategory = errors.New("invalid category")
)

// Category is the per-category adapter contract.
type Category struct {
	Merge       MergeFunc              // Merge nil means Last-Writer-Wins
	Codec       Codec                  // Codec nil means RawCodec
	Name        string                 // Name category name carried by every operation
	MergeName   string                 // MergeName built-in merge name (for display)
	Consistency models.ConsistencyKind // Consistency model for ordering and visibility
	// StalenessTolerance is the maximum age of an unsynced operation before
	// the scheduler forces a session. Zero disables the deadline.
	StalenessTolerance time.Duration
	Priority           int // Priority 1..10, higher syncs sooner
}

// Validate checks the category definition.
func (c *Category) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidCategory)
	case !c.Consistency.Valid():
		return fmt.Errorf("%w: %s: unknown consistency %q", ErrInvalidCategory, c.Name, c.Consistency)
	case c.Priority < MinPriority || c.Priority > MaxPriority:
		return fmt.Errorf("%w: %s: priority %d out of range", ErrInvalidCategory, c.Name, c.Priority)
	case c.StalenessTolerance < 0:
		return fmt.Errorf("%w: %s: negative staleness tolerance", ErrInvalidCategory, c.Name)
	}
	// merge по шифртекстам с случайным nonce расходится между репликами
	if c.Merge != nil && c.Codec != nil && !c.Codec.Deterministic() {
		return fmt.Errorf("%w: %s: merge requires a deterministic codec, got %s",
			ErrInvalidCategory, c.Name, c.Codec.Name())
	}
	return nil
}

// Encode converts an application value into an operation payload.
func (c *Category) Encode(value []byte) ([]byte, error) {
	if c.Codec == nil {
		return RawCodec{}.Encode(value)
	}
	return c.Codec.Encode(value)
}

// Decode converts a stored payload back into the application value.
func (c *Category) Decode(payload []byte) ([]byte, error) {
	if c.Codec == nil {
		return RawCodec{}.Decode(payload)
	}
	return c.Codec.Decode(payload)
}

// Strong reports whether the category requires exclusive commits.
func (c *Category) Strong() bool {
	return c.Consistency == models.ConsistencyStrong
}

// Registry maps category names to adapters. Unknown names resolve to the
// fallback category when one is configured.
type Registry struct {
	categories map[string]*Category
	fallback   *Category
	mu         sync.RWMutex
}

// NewRegistry creates a registry with an optional fallback (nil for none).
func NewRegistry(fallback *Category) (*Registry, error) {
	if fallback != nil {
		if err := fallback.Validate(); err != nil {
			return nil, err
		}
	}
	return &Registry{
		categories: make(map[string]*Category),
		fallback:   fallback,
	}, nil
}

// Register adds or replaces a category.
func (r *Registry) Register(c *Category) error {
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.categories[c.Name] = c
	return nil
}

// Lookup returns the adapter for name.
func (r *Registry) Lookup(name string) (*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.categories[name]; ok {
		return c, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, name)
}

// All returns the registered categories ordered by name.
func (r *Registry) All() []*Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StrongCategories returns names of registered strong categories, sorted.
func (r *Registry) StrongCategories() []string {
	var out []string
	for _, c := range r.All() {
		if c.Strong() {
			out = append(out, c.Name)
		}
	}
	return out
}
