// Package jsonright encodes entities for sending through the wire.
//
// Models do not implement their own serialization. Instead an encoder is
// registered per type, possibly in a different package, and receives the
// request context (peto) plus a set of features naming the level of detail
// wanted, e.g. only names for a list and every field for a detail screen.
//
// Sequences of entities are pivoted to avoid repeating keys:
//
//	[
//	    ["email", "ex@am.pl", "sagan@nasa.gov"],
//	    ["id", 1, 2],
//	]
package jsonright

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kerno/internal/attrs"
)

// ErrNotImplemented is returned for values of a type nobody registered.
var ErrNotImplemented = errors.New("no jsonright implementation registered")

// Features name the level of detail an encoder should output.
type Features []string

// Has reports whether feature is requested.
func (f Features) Has(feature string) bool {
	return slices.Contains(f, feature)
}

// Func encodes one value. P is the request context type.
type Func[P any] func(obj any, peto P, features Features) (any, error)

// Registry holds the encoders for one request context type.
type Registry[P any] struct {
	mu    sync.RWMutex
	impls map[reflect.Type]Func[P]
}

func NewRegistry[P any]() *Registry[P] {
	return &Registry[P]{impls: map[reflect.Type]Func[P]{}}
}

// Register adds the encoder for values of type T, replacing any previous one.
func Register[T, P any](r *Registry[P], fn func(obj T, peto P, features Features) (any, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[reflect.TypeFor[T]()] = func(obj any, peto P, features Features) (any, error) {
		return fn(obj.(T), peto, features)
	}
}

func (r *Registry[P]) lookup(t reflect.Type) (Func[P], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.impls[t]
	return fn, ok
}

// Encode converts obj into a tree of maps, slices and primitives that
// encoding/json can marshal.
func (r *Registry[P]) Encode(obj any, peto P, features ...string) (any, error) {
	return r.encode(obj, peto, Features(features))
}

func (r *Registry[P]) encode(obj any, peto P, features Features) (any, error) {
	if obj == nil {
		return nil, nil
	}
	v := reflect.ValueOf(obj)
	if fn, ok := r.lookup(v.Type()); ok {
		return r.custom(fn, obj, peto, features)
	}

	switch o := obj.(type) {
	case time.Time:
		return attrs.ISOFormat(o), nil
	case decimal.Decimal:
		f, _ := o.Float64()
		return f, nil
	case []byte:
		return string(o), nil
	}

	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return obj, nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return r.encode(v.Elem().Interface(), peto, features)
	case reflect.Map:
		return r.encodeMap(v, peto, features)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return []any{}, nil
		}
		return r.encodeSequence(v, peto, features)
	}
	return nil, fmt.Errorf("%w for type %s", ErrNotImplemented, v.Type())
}

// custom runs a registered encoder. Maps it returns are encoded in turn,
// so encoders can hand back entities nested in plain dictionaries.
func (r *Registry[P]) custom(fn Func[P], obj any, peto P, features Features) (any, error) {
	out, err := fn(obj, peto, features)
	if err != nil {
		return nil, err
	}
	if m, ok := out.(map[string]any); ok {
		return r.encodeMap(reflect.ValueOf(m), peto, features)
	}
	return out, nil
}

func (r *Registry[P]) encodeMap(v reflect.Value, peto P, features Features) (map[string]any, error) {
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		val, err := r.encode(iter.Value().Interface(), peto, features)
		if err != nil {
			return nil, err
		}
		out[fmt.Sprint(iter.Key().Interface())] = val
	}
	return out, nil
}

func (r *Registry[P]) encodeSequence(v reflect.Value, peto P, features Features) ([]any, error) {
	n := v.Len()
	if n == 0 {
		return []any{}, nil
	}
	if r.primitive(v.Index(0)) {
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			val, err := r.encode(v.Index(i).Interface(), peto, features)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}

	// A sequence of entities: pivot so keys appear once.
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		val, err := r.encode(v.Index(i).Interface(), peto, features)
		if err != nil {
			return nil, err
		}
		row, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("jsonright: cannot pivot %s, its encoder did not return a map", v.Index(i).Type())
		}
		rows = append(rows, row)
	}
	keys := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		col := make([]any, 0, n+1)
		col = append(col, k)
		for _, row := range rows {
			col = append(col, row[k])
		}
		out = append(out, col)
	}
	return out, nil
}

// primitive reports whether v is encoded as itself rather than pivoted.
// Maps count as primitive; registered types never do.
func (r *Registry[P]) primitive(v reflect.Value) bool {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return true
		}
		if _, ok := r.lookup(v.Type()); ok {
			return false
		}
		v = v.Elem()
	}
	if _, ok := r.lookup(v.Type()); ok {
		return false
	}
	switch v.Interface().(type) {
	case time.Time, decimal.Decimal, []byte:
		return true
	}
	switch v.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Array:
		return false
	}
	return true
}

// Entity2Dict dumps attributes of obj into a map. Without keys every
// attribute except "password" is used. Keys naming no attribute are skipped.
func Entity2Dict(obj any, keys ...string) map[string]any {
	names, values := attrs.Of(obj)
	if len(keys) == 0 {
		keys = attrs.DefaultKeys(names)
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if val, ok := values[k]; ok {
			out[k] = val
		}
	}
	return out
}
