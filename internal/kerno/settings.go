package kerno

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// Settings are the application settings: INI sections of key/value pairs.
type Settings map[string]map[string]string

// Get returns the value of key in section.
func (s Settings) Get(section, key string) (string, bool) {
	sec, ok := s[section]
	if !ok {
		return "", false
	}
	val, ok := sec[key]
	return val, ok
}

// List splits a value on commas and newlines, dropping blanks.
func (s Settings) List(section, key string) []string {
	val, _ := s.Get(section, key)
	fields := strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Sections returns the section names, sorted.
func (s Settings) Sections() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadINIFiles merges the INI files at paths in order; later files win.
// Indented continuation lines extend the previous value, so lists can span
// several lines.
func ReadINIFiles(paths ...string) (Settings, error) {
	if len(paths) == 0 {
		return Settings{}, nil
	}
	others := make([]any, 0, len(paths)-1)
	for _, p := range paths[1:] {
		others = append(others, p)
	}
	f, err := ini.LoadSources(ini.LoadOptions{AllowPythonMultilineValues: true}, paths[0], others...)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	settings := Settings{}
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection && len(sec.Keys()) == 0 {
			continue
		}
		values := make(map[string]string, len(sec.Keys()))
		for _, k := range sec.Keys() {
			values[k.Name()] = k.Value()
		}
		settings[sec.Name()] = values
	}
	return settings, nil
}
