// Package todict converts entities to dictionaries, usually for JSON output.
//
// Conversion is dispatched on the runtime type of the object and on a flavor
// string, so one model can have several converters ("", "table", "verbose"...)
// living outside the model itself. Without a matching converter the default
// one, ReuseDict, is used.
//
// New code should prefer the jsonright package.
package todict

import (
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kerno/internal/attrs"
)

// Dict is the dictionary type every converter returns.
type Dict = map[string]any

// Options travel unchanged to the selected converter.
type Options struct {
	Keys    []string
	ForJSON bool
	Sort    bool
	Extra   map[string]any
}

// Option customizes a ToDict call.
type Option func(*Options)

// WithKeys restricts the output to keys.
func WithKeys(keys ...string) Option {
	return func(o *Options) { o.Keys = keys }
}

// ForJSON toggles conversion of dates and decimals to JSON-friendly values.
func ForJSON(v bool) Option {
	return func(o *Options) { o.ForJSON = v }
}

// Sorted toggles key sorting in ReuseDict.
func Sorted(v bool) Option {
	return func(o *Options) { o.Sort = v }
}

// With passes an arbitrary argument to custom converters.
func With(key string, val any) Option {
	return func(o *Options) {
		if o.Extra == nil {
			o.Extra = map[string]any{}
		}
		o.Extra[key] = val
	}
}

// NewOptions applies opts over the defaults (ForJSON and Sort enabled).
func NewOptions(opts ...Option) Options {
	o := Options{ForJSON: true, Sort: true}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Func is a converter implementation.
type Func func(obj any, flavor string, o Options) Dict

type key struct {
	typ    reflect.Type
	flavor string
}

type ifaceEntry struct {
	typ    reflect.Type
	flavor string
	fn     Func
}

// Registry is a dispatch table keyed by (type, flavor).
type Registry struct {
	mu       sync.RWMutex
	exact    map[key]Func
	ifaces   []ifaceEntry
	fallback Func
}

// NewRegistry returns an empty registry whose fallback is ReuseDict.
func NewRegistry() *Registry {
	return &Registry{
		exact: map[key]Func{},
		fallback: func(obj any, _ string, o Options) Dict {
			return ReuseDict(obj, o)
		},
	}
}

// Register adds fn for values of typ under flavor. When typ is an interface
// type, fn serves every value implementing it that has no exact converter;
// interfaces are tried in registration order.
func (r *Registry) Register(typ reflect.Type, flavor string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if typ.Kind() == reflect.Interface {
		r.ifaces = append(r.ifaces, ifaceEntry{typ: typ, flavor: flavor, fn: fn})
		return
	}
	r.exact[key{typ, flavor}] = fn
}

// RegisterFor is the typed form of Registry.Register.
func RegisterFor[T any](r *Registry, flavor string, fn func(obj T, flavor string, o Options) Dict) {
	r.Register(reflect.TypeFor[T](), flavor, func(obj any, flavor string, o Options) Dict {
		return fn(obj.(T), flavor, o)
	})
}

// ToDict converts obj with the converter registered for its type and flavor.
func (r *Registry) ToDict(obj any, flavor string, opts ...Option) Dict {
	o := NewOptions(opts...)
	fn, arg := r.lookup(obj, flavor)
	return fn(arg, flavor, o)
}

func (r *Registry) lookup(obj any, flavor string) (Func, any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := reflect.TypeOf(obj)
	if t == nil {
		return r.fallback, obj
	}
	if fn, ok := r.exact[key{t, flavor}]; ok {
		return fn, obj
	}
	if t.Kind() == reflect.Pointer && !reflect.ValueOf(obj).IsNil() {
		if fn, ok := r.exact[key{t.Elem(), flavor}]; ok {
			return fn, reflect.ValueOf(obj).Elem().Interface()
		}
	}
	for _, e := range r.ifaces {
		if e.flavor == flavor && t.Implements(e.typ) {
			return e.fn, obj
		}
	}
	return r.fallback, obj
}

// Default is the process-wide registry used by the package-level functions.
var Default = NewRegistry()

// Register adds a converter to Default.
func Register(typ reflect.Type, flavor string, fn Func) {
	Default.Register(typ, flavor, fn)
}

// ToDict converts obj through Default.
func ToDict(obj any, flavor string, opts ...Option) Dict {
	return Default.ToDict(obj, flavor, opts...)
}

// ReuseDict dumps the attributes of obj into a Dict. It is free of dispatch,
// so custom converters can build on it.
//
// Without o.Keys every attribute except "password" is used. Keys naming no
// attribute are skipped. With o.ForJSON, times become ISO strings, decimals
// become floats and values JSON cannot represent are dropped.
func ReuseDict(obj any, o Options) Dict {
	names, values := attrs.Of(obj)
	keys := o.Keys
	if len(keys) == 0 {
		keys = attrs.DefaultKeys(names)
	}
	if o.Sort {
		keys = append([]string(nil), keys...)
		sort.Strings(keys)
	}
	out := make(Dict, len(keys))
	for _, k := range keys {
		val, ok := values[k]
		if !ok {
			continue
		}
		if !o.ForJSON {
			out[k] = val
			continue
		}
		if conv, keep := forJSON(val); keep {
			out[k] = conv
		}
	}
	return out
}

func forJSON(val any) (any, bool) {
	switch v := val.(type) {
	case nil:
		return nil, true
	case time.Time:
		return attrs.ISOFormat(v), true
	case *time.Time:
		if v == nil {
			return nil, true
		}
		return attrs.ISOFormat(*v), true
	case decimal.Decimal:
		f, _ := v.Float64()
		return f, true
	}
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Slice, reflect.Array, reflect.Map:
		return val, true
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, true
		}
		return forJSON(rv.Elem().Interface())
	}
	return nil, false
}
