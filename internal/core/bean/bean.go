package bean

import (
	"fmt"
	"slices"
	"sync"

	"github.com/yndnr/sfsb-go/internal/core/domain"
)

// Bean is a stateful component whose state survives passivation.
type Bean interface {
	// BeanType returns the tag under which the type is registered.
	BeanType() string

	// MarshalFields writes the bean's state. It must not fail; values
	// that cannot be captured are skipped by the writer.
	MarshalFields(w *FieldWriter)

	// UnmarshalFields restores state from r. Fields absent from r keep
	// the values the factory gave them.
	UnmarshalFields(r *FieldReader) error
}

// Factory returns a new bean in its default state.
type Factory func() Bean

// Types maps type tags to factories. It is safe for concurrent use.
type Types struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewTypes returns an empty type registry.
func NewTypes() *Types {
	return &Types{factories: make(map[string]Factory)}
}

// Register makes factory available under tag. It panics on an empty tag,
// a nil factory or a duplicate registration.
func (t *Types) Register(tag string, factory Factory) {
	if tag == "" || factory == nil {
		panic("bean: Register with empty tag or nil factory")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.factories[tag]; dup {
		panic(fmt.Sprintf("bean: Register called twice for type %q", tag))
	}
	t.factories[tag] = factory
}

// New allocates a default bean of the given type.
func (t *Types) New(tag string) (Bean, error) {
	t.mu.RLock()
	factory, ok := t.factories[tag]
	t.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUnknownType.WithDetailsf("type %q", tag)
	}
	return factory(), nil
}

// Tags returns the registered type tags in sorted order.
func (t *Types) Tags() []string {
	t.mu.RLock()
	tags := make([]string, 0, len(t.factories))
	for tag := range t.factories {
		tags = append(tags, tag)
	}
	t.mu.RUnlock()
	slices.Sort(tags)
	return tags
}
