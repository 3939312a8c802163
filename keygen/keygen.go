// Package keygen defines the pluggable key-generation capability the
// write path uses to derive record keys and partition paths for rows
// that do not already carry them. Concrete generators live with the
// engines that own the key semantics and register themselves here;
// this package only defines the contract, the property bag they are
// constructed from, and the registry they are selected through.
package keygen

import (
	"sort"
	"strconv"
	"sync"

	avro "github.com/go-avro/avro"
	"github.com/pkg/errors"

	"github.com/plateaudb/plateau/record"
)

// Generator derives the stable key parts for a row. Implementations
// are constructed once per partition and invoked once per row per
// part; they must be safe for that access pattern but need not be
// threadsafe.
type Generator interface {
	RecordKey(row record.Row, schema *avro.RecordSchema) (string, error)
	PartitionPath(row record.Row, schema *avro.RecordSchema) (string, error)
}

// Well-known generator properties. The two auto-key properties are
// injected by the write path, once per partition, when no record-key
// field is configured; generators supporting auto-generated keys
// derive keys from them instead of row contents.
const (
	PropRecordKeyField     = "plateau.keygen.recordkey.field"
	PropPartitionPathField = "plateau.keygen.partitionpath.field"
	PropAutoPartitionID    = "plateau.keygen.auto.partition.id"
	PropAutoInstantTime    = "plateau.keygen.auto.instant.time"
)

// Properties is the flat property set generators are constructed from.
type Properties map[string]string

// String returns the property value for key, or def when unset.
func (p Properties) String(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Bool returns the boolean property for key, or def when unset or
// unparseable.
func (p Properties) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns the integer property for key, or def when unset or
// unparseable.
func (p Properties) Int(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Clone returns a copy of p. A nil receiver clones to an empty,
// writable property set.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p)+2)
	for k, v := range p {
		out[k] = v
	}
	return out
}

// AutoKey reports whether the property set selects auto-generated-key
// mode, i.e. no explicit record-key field is configured.
func (p Properties) AutoKey() bool {
	return p.String(PropRecordKeyField, "") == ""
}

// WithAutoKeyParams returns a copy of p carrying the two generation
// parameters auto-key generators need: the partition being processed
// and the commit instant of the batch.
func WithAutoKeyParams(p Properties, partitionID int, instant string) Properties {
	out := p.Clone()
	out[PropAutoPartitionID] = strconv.Itoa(partitionID)
	out[PropAutoInstantTime] = instant
	return out
}

// Constructor builds a generator from its properties.
type Constructor func(Properties) (Generator, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register makes a generator constructor selectable by name. It
// panics if name is already taken, like database/sql driver
// registration does.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if ctor == nil {
		panic("keygen: Register constructor is nil")
	}
	if _, dup := registry[name]; dup {
		panic("keygen: Register called twice for generator " + name)
	}
	registry[name] = ctor
}

// Generators returns the names of the registered generators, sorted.
func Generators() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the named generator from props.
func New(name string, props Properties) (Generator, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown key generator %q (registered: %v)", name, Generators())
	}
	gen, err := ctor(props)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing key generator %q", name)
	}
	return gen, nil
}
