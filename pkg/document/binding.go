package document

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ErrUnbound is returned when a document type has no collection binding.
var ErrUnbound = errors.New("document type has no collection binding")

// ErrConflictingBinding is returned when a type is bound to two different collections.
var ErrConflictingBinding = errors.New("document type already bound to another collection")

// Bindings is an explicit mapping table from document types to collection names.
// Entries in the table take precedence over CollectionNamer.
type Bindings struct {
	mu    sync.RWMutex
	names map[reflect.Type]string
}

// NewBindings creates an empty binding table.
func NewBindings() *Bindings {
	return &Bindings{names: make(map[reflect.Type]string)}
}

// Bind associates T with the given collection name.
// Rebinding T to the same name is a no-op.
func Bind[T any](b *Bindings, collection string) error {
	name := strings.TrimSpace(collection)
	typ := reflect.TypeFor[T]()
	if name == "" {
		return fmt.Errorf("bind %s: collection name is required", typ)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.names == nil {
		b.names = make(map[reflect.Type]string)
	}
	if existing, ok := b.names[typ]; ok && existing != name {
		return fmt.Errorf("%w: %s is bound to %q, cannot rebind to %q", ErrConflictingBinding, typ, existing, name)
	}
	b.names[typ] = name
	return nil
}

// MustBind is like Bind but panics on error. Intended for package init blocks.
func MustBind[T any](b *Bindings, collection string) {
	if err := Bind[T](b, collection); err != nil {
		panic(err)
	}
}

// Resolve returns the collection name bound to T.
// The table in b is consulted first (b may be nil); then T's CollectionName method.
func Resolve[T any](b *Bindings) (string, error) {
	typ := reflect.TypeFor[T]()
	if b != nil {
		b.mu.RLock()
		name, ok := b.names[typ]
		b.mu.RUnlock()
		if ok {
			return name, nil
		}
	}

	if namer, ok := zeroValue(typ).(CollectionNamer); ok {
		if name := strings.TrimSpace(namer.CollectionName()); name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnbound, typ)
}

// zeroValue returns a usable zero value for typ. Pointer types get a pointer to
// a zero element so value-receiver methods can be called safely.
func zeroValue(typ reflect.Type) any {
	if typ.Kind() == reflect.Pointer {
		return reflect.New(typ.Elem()).Interface()
	}
	return reflect.Zero(typ).Interface()
}
