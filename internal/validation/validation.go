// Package validation glues go-playground/validator to kerno envelopes:
// validation failures become a *state.MalbonaRezulto listing the invalid
// fields.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"kerno/internal/attrs"
	"kerno/internal/state"
)

const (
	DefaultTitle = "Validation error"
	DefaultPlain = "The data do not pass server validation."
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator with the custom rules registered.
// Field names in errors follow json tags.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return attrs.Name(f)
		})
		must(validate.RegisterValidation("numlines", numLines))
		must(validate.RegisterValidation("isweb", isWeb))
		must(validate.RegisterValidation("noscripts", noScripts))
	})
	return validate
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Validate checks v against its validate tags.
func Validate(v any) error {
	return InvalidToMalbona(Validator().Struct(v), DefaultTitle, DefaultPlain, "")
}

// Decode fills dst from a request payload, trims its strings and
// validates it.
func Decode(raw map[string]any, dst any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		m := state.NewMalbona(400, state.Title(DefaultTitle), state.Plain(DefaultPlain))
		m.SetDebug("error_debug", err.Error())
		return m
	}
	TrimStrings(dst)
	return Validate(dst)
}

// InvalidToMalbona converts validator errors into a MalbonaRezulto with a
// toast and the message of every invalid field. Other errors pass through.
func InvalidToMalbona(err error, title, plain, html string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	opts := []state.MessageOption{state.Title(title)}
	if html != "" {
		opts = append(opts, state.HTML(html))
	} else {
		opts = append(opts, state.Plain(plain))
	}
	m := state.NewMalbona(400, opts...)
	m.Invalid = Messages(verrs)
	return m
}

// Messages maps each invalid field to a message fit for end users. Nested
// fields are keyed by their path below the validated struct.
func Messages(verrs validator.ValidationErrors) map[string]any {
	out := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if _, rest, ok := strings.Cut(key, "."); ok {
			key = rest
		}
		out[key] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("Shorter than minimum length %s", fe.Param())
	case "max":
		return fmt.Sprintf("Longer than maximum length %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "numlines":
		lo, hi := lineBounds(fe.Param())
		if s, ok := fe.Value().(string); ok && lo > 0 && countLines(s) < lo {
			return fmt.Sprintf("Not enough lines (minimum %d)", lo)
		}
		return fmt.Sprintf("Too many lines (maximum %d)", hi)
	case "isweb":
		return `Must start with "http://" or "https://".`
	case "noscripts":
		return "No scripts are allowed!"
	}
	return fmt.Sprintf("Failed the %q rule", fe.Tag())
}

// numlines=min:max bounds the number of lines; either side may be empty.
func numLines(fl validator.FieldLevel) bool {
	lo, hi := lineBounds(fl.Param())
	n := countLines(fl.Field().String())
	if lo > 0 && n < lo {
		return false
	}
	return hi < 0 || n <= hi
}

func lineBounds(param string) (int, int) {
	loStr, hiStr, _ := strings.Cut(param, ":")
	lo, hi := 0, -1
	if v, err := strconv.Atoi(loStr); err == nil {
		lo = v
	}
	if v, err := strconv.Atoi(hiStr); err == nil {
		hi = v
	}
	return lo, hi
}

func countLines(s string) int {
	return strings.Count(s, "\n") + 1
}

func isWeb(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func noScripts(fl validator.FieldLevel) bool {
	return !strings.Contains(fl.Field().String(), "<script")
}

// TrimStrings strips surrounding whitespace from the string fields of the
// struct ptr points to, descending into nested structs. Combined with the
// "required" rule it rejects blank strings.
func TrimStrings(ptr any) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	trim(v.Elem())
}

func trim(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			trim(v.Elem())
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(strings.TrimSpace(v.String()))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				trim(v.Field(i))
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			trim(v.Index(i))
		}
	}
}
