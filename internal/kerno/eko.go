package kerno

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// Provider builds the object a reference names.
type Provider func() (any, error)

// Extension configures the application at startup, much like a plugin.
type Extension func(e *Eko) error

var catalog = struct {
	sync.RWMutex
	providers  map[string]Provider
	extensions map[string]Extension
}{
	providers:  map[string]Provider{},
	extensions: map[string]Extension{},
}

// Provide makes the object built by fn available under ref, so settings
// can name it in the "kerno utilities" section. Packages call it from init.
func Provide(ref string, fn Provider) {
	catalog.Lock()
	defer catalog.Unlock()
	catalog.providers[ref] = fn
}

// RegisterExtension makes fn includable as name, from code or from the
// "includes" setting of the "kerno" section.
func RegisterExtension(name string, fn Extension) {
	catalog.Lock()
	defer catalog.Unlock()
	catalog.extensions[name] = fn
}

func resolve(ref string) (any, error) {
	catalog.RLock()
	fn, ok := catalog.providers[ref]
	catalog.RUnlock()
	if !ok {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("nothing provides %q", ref)}
	}
	obj, err := fn()
	if err != nil {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("cannot provide %q", ref), Err: err}
	}
	return obj, nil
}

func extension(name string) (Extension, bool) {
	catalog.RLock()
	defer catalog.RUnlock()
	fn, ok := catalog.extensions[name]
	return fn, ok
}

// UtilityRegistry gradually builds the utilities of the Kerno. Only the Eko
// hands it out, so the Kerno sees a registry frozen after startup.
type UtilityRegistry struct {
	m map[string]any
}

// Register stores obj under name, replacing any previous utility.
func (r *UtilityRegistry) Register(name string, obj any) any {
	r.m[name] = obj
	return obj
}

// RegisterRef registers the object that ref resolves to.
func (r *UtilityRegistry) RegisterRef(name, ref string) (any, error) {
	obj, err := resolve(ref)
	if err != nil {
		return nil, err
	}
	return r.Register(name, obj), nil
}

// SetDefault registers obj only when name is still free and reports
// whether it did.
func (r *UtilityRegistry) SetDefault(name string, obj any) bool {
	if existing, ok := r.m[name]; ok && existing != nil {
		return false
	}
	r.Register(name, obj)
	return true
}

// Ensure fails when no utility has been registered under name.
// component names who needs it; it defaults to "The application".
func (r *UtilityRegistry) Ensure(name, component string) error {
	if component == "" {
		component = "The application"
	}
	if obj, ok := r.m[name]; !ok || obj == nil {
		return &ConfigurationError{
			Msg: fmt.Sprintf(`%s needs a utility called "%s", which has not been registered.`, component, name),
		}
	}
	return nil
}

// Eko starts a Kerno application. It reads the settings, registers the
// utilities named in the "kerno utilities" section and includes the
// extensions listed under "includes" in the "kerno" section.
//
// Including the same extension twice is an error, which keeps startup code
// clean.
type Eko struct {
	Kerno     *Kerno
	Utilities *UtilityRegistry

	included []string
	log      *slog.Logger
}

// EkoFromINI reads the INI files at paths and starts from their settings.
func EkoFromINI(paths ...string) (*Eko, error) {
	settings, err := ReadINIFiles(paths...)
	if err != nil {
		return nil, &ConfigurationError{Msg: "cannot read settings", Err: err}
	}
	return NewEko(settings)
}

func NewEko(settings Settings) (*Eko, error) {
	k := newKerno(settings)
	e := &Eko{
		Kerno:     k,
		Utilities: &UtilityRegistry{m: k.Utilities.m},
		log:       slog.With("component", "eko"),
	}

	section := k.Settings["kerno utilities"]
	for _, name := range slices.Sorted(maps.Keys(section)) {
		ref := section[name]
		if _, err := e.Utilities.RegisterRef(name, ref); err != nil {
			return nil, err
		}
		e.log.Debug("registered utility", "name", name, "ref", ref)
	}
	if err := e.IncludeMany(k.Settings.List("kerno", "includes"), true); err != nil {
		return nil, err
	}
	return e, nil
}

// Settings are the settings of the Kerno being built.
func (e *Eko) Settings() Settings {
	return e.Kerno.Settings
}

// Include runs the extension registered as name.
func (e *Eko) Include(name string) error {
	fn, ok := extension(name)
	if !ok {
		return &ConfigurationError{Msg: fmt.Sprintf("no extension called %q has been registered", name)}
	}
	return e.IncludeFunc(name, fn)
}

// IncludeFunc runs an ad-hoc extension, recording it as name.
func (e *Eko) IncludeFunc(name string, fn Extension) error {
	if slices.Contains(e.included, name) {
		return &ConfigurationError{Msg: fmt.Sprintf("%s has already been included!", name)}
	}
	e.included = append(e.included, name)
	e.log.Debug("including", "extension", name)
	if err := fn(e); err != nil {
		return &ConfigurationError{Msg: fmt.Sprintf("including %s", name), Err: err}
	}
	return nil
}

// IncludeMany includes each extension in order. Without throw, names no
// extension was registered for are skipped.
func (e *Eko) IncludeMany(names []string, throw bool) error {
	for _, name := range names {
		if _, ok := extension(name); !ok && !throw {
			e.log.Warn("skipping unknown extension", "extension", name)
			continue
		}
		if err := e.Include(name); err != nil {
			return err
		}
	}
	return nil
}

// Included returns the names of the included extensions, in order.
func (e *Eko) Included() []string {
	return slices.Clone(e.included)
}

// SetRepositoryFactory sets how Kerno.NewRepo builds request repositories.
// Repositories compose by embedding, so a single factory builds the
// concrete type.
func (e *Eko) SetRepositoryFactory(fn RepositoryFactory) {
	e.Kerno.newRepo = fn
}
