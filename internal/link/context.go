package link

import (
	"sync"

	viewstore "github.com/hanpama/viewlink/internal/viewstore"
)

// ViewStoreKey is the context-bag key under which the link publishes
// its view store to downstream consumers.
const ViewStoreKey = "viewStore"

// Bag is the append-only key/value store threaded through an
// operation. Later contributions shadow earlier ones per key, except
// the schema-fragment list, which always appends. Keys are never
// removed.
type Bag struct {
	mu       sync.Mutex
	values   map[string]any
	typeDefs []string
}

// NewBag creates an empty context bag.
func NewBag() *Bag {
	return &Bag{values: make(map[string]any)}
}

// Set stores v under key, shadowing any earlier contribution.
func (b *Bag) Set(key string, v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = v
}

// Get returns the value stored under key.
func (b *Bag) Get(key string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok
}

// AppendTypeDefs adds schema fragments to the accumulated list.
// Multiple links in a chain each contribute; nothing replaces.
func (b *Bag) AppendTypeDefs(defs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typeDefs = append(b.typeDefs, defs...)
}

// TypeDefs returns a copy of the accumulated schema-fragment list.
func (b *Bag) TypeDefs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.typeDefs...)
}

// ViewStoreFrom extracts the view store a link published into the bag.
func ViewStoreFrom(b *Bag) (viewstore.Interface, bool) {
	v, ok := b.Get(ViewStoreKey)
	if !ok {
		return nil, false
	}
	store, ok := v.(viewstore.Interface)
	return store, ok
}
