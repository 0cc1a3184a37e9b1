package action

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"kerno/internal/attrs"
)

// Difference is one attribute that changed between two entities.
type Difference struct {
	Field string
	Old   any
	New   any
}

// Comparison pairs two versions of the same kind of entity.
type Comparison[T any] struct {
	Old T
	New T
}

func Compare[T any](before, after T) Comparison[T] {
	return Comparison[T]{Old: before, New: after}
}

// Differences returns the attributes whose values differ, sorted by name.
// Without fields every attribute is compared.
func (c Comparison[T]) Differences(fields ...string) []Difference {
	names, oldValues := attrs.Of(c.Old)
	_, newValues := attrs.Of(c.New)
	if len(fields) == 0 {
		fields = attrs.Relevant(names)
	}
	fields = append([]string(nil), fields...)
	sort.Strings(fields)

	var out []Difference
	for _, f := range fields {
		o, n := oldValues[f], newValues[f]
		if !reflect.DeepEqual(o, n) {
			out = append(out, Difference{Field: f, Old: o, New: n})
		}
	}
	return out
}

func (c Comparison[T]) String() string {
	diffs := c.Differences()
	parts := make([]string, 0, len(diffs))
	for _, d := range diffs {
		parts = append(parts, fmt.Sprintf("%s changed from «%s» to «%s».", d.Field, show(d.Old), show(d.New)))
	}
	return strings.Join(parts, " ")
}

func show(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

// Organization tells how to turn an existing collection into a desired one.
type Organization[T any] struct {
	ToAdd    []T
	ToKeep   []T
	ToRemove []T
}

// OrganizeHashableObjects compares the collections as sets. Each item shows
// up once, in the order it is first seen in the collection it comes from.
func OrganizeHashableObjects[T comparable](existing, desired []T) Organization[T] {
	have := make(map[T]struct{}, len(existing))
	for _, e := range existing {
		have[e] = struct{}{}
	}
	want := make(map[T]struct{}, len(desired))
	for _, d := range desired {
		want[d] = struct{}{}
	}

	var org Organization[T]
	seen := make(map[T]struct{}, len(desired))
	for _, d := range desired {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		if _, ok := have[d]; !ok {
			org.ToAdd = append(org.ToAdd, d)
		}
	}
	clear(seen)
	for _, e := range existing {
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		if _, ok := want[e]; ok {
			org.ToKeep = append(org.ToKeep, e)
		} else {
			org.ToRemove = append(org.ToRemove, e)
		}
	}
	return org
}

// ValueOrganization is the reconciliation of value objects. ToKeep pairs
// each existing object (Old) with its desired version (New), so callers
// can update what changed.
type ValueOrganization[T any] struct {
	ToAdd    []T
	ToKeep   []Comparison[T]
	ToRemove []T
}

// OrganizeValueObjects matches existing and desired objects by key. Only the
// first object seen for a key on each side takes part.
func OrganizeValueObjects[T any, K comparable](existing, desired []T, key func(T) K) ValueOrganization[T] {
	have := make(map[K]T, len(existing))
	for _, e := range existing {
		if _, dup := have[key(e)]; !dup {
			have[key(e)] = e
		}
	}
	want := make(map[K]struct{}, len(desired))

	var org ValueOrganization[T]
	for _, d := range desired {
		k := key(d)
		if _, dup := want[k]; dup {
			continue
		}
		want[k] = struct{}{}
		if e, ok := have[k]; ok {
			org.ToKeep = append(org.ToKeep, Compare(e, d))
		} else {
			org.ToAdd = append(org.ToAdd, d)
		}
	}
	removed := make(map[K]struct{})
	for _, e := range existing {
		k := key(e)
		if _, ok := want[k]; ok {
			continue
		}
		if _, dup := removed[k]; dup {
			continue
		}
		removed[k] = struct{}{}
		org.ToRemove = append(org.ToRemove, e)
	}
	return org
}
