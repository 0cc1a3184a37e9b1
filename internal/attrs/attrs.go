// Package attrs reads the exported attributes of entities by reflection.
// It backs the dictionary converters in todict and jsonright.
package attrs

import (
	"reflect"
	"strings"
	"time"
)

// Of returns the attribute names of obj in declaration order and their values.
// Attribute names follow the json tag when present; fields tagged "-" and
// unexported fields are skipped. Embedded structs are flattened.
// Anything that is not a struct (or a pointer to one) has no attributes.
func Of(obj any) ([]string, map[string]any) {
	values := map[string]any{}
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, values
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, values
	}
	var names []string
	collect(v, &names, values)
	return names, values
}

func collect(v reflect.Value, names *[]string, values map[string]any) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			collect(v.Field(i), names, values)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := Name(f)
		if name == "" {
			continue
		}
		if _, dup := values[name]; !dup {
			*names = append(*names, name)
		}
		values[name] = v.Field(i).Interface()
	}
}

// Name is the attribute name of a struct field, or "" when the field is hidden.
func Name(f reflect.StructField) string {
	tag, ok := f.Tag.Lookup("json")
	if !ok {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// Relevant drops names that carry framework state rather than entity data.
func Relevant(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, "__") || strings.HasPrefix(n, "_sa_") {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Excluding drops every name present in blacklist.
func Excluding(blacklist []string, names []string) []string {
	out := make([]string, 0, len(names))
outer:
	for _, n := range names {
		for _, b := range blacklist {
			if n == b {
				continue outer
			}
		}
		out = append(out, n)
	}
	return out
}

// DefaultKeys are the attribute names exported when the caller names none:
// every relevant attribute except "password".
func DefaultKeys(names []string) []string {
	return Excluding([]string{"password"}, Relevant(names))
}

// ISOFormat renders t the way the web clients expect dates: no offset for UTC,
// microseconds only when present.
func ISOFormat(t time.Time) string {
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond() != 0 {
		layout += ".000000"
	}
	if t.Location() != time.UTC {
		layout += "-07:00"
	}
	return t.Format(layout)
}
