// Package notify stores in-app notifications and fans domain events out to
// owners and the event bus.
package notify

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderRE = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

var ErrMissingVariables = errors.New("missing template variables")

// MissingError lists placeholders that had no value.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingVariables, strings.Join(e.Keys, ", "))
}

func (e *MissingError) Unwrap() error { return ErrMissingVariables }

// Render substitutes {{key}} placeholders. Unknown keys render empty and are
// returned sorted and deduplicated.
func Render(text string, vars map[string]string) (string, []string) {
	missing := map[string]struct{}{}
	out := placeholderRE.ReplaceAllStringFunc(text, func(m string) string {
		match := placeholderRE.FindStringSubmatch(m)
		if len(match) != 2 {
			return ""
		}
		if v, ok := vars[match[1]]; ok {
			return v
		}
		missing[match[1]] = struct{}{}
		return ""
	})
	keys := make([]string, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return out, keys
}

// Placeholders returns the distinct keys referenced by text, sorted.
func Placeholders(text string) []string {
	_, keys := Render(text, nil)
	return keys
}

// RenderStrict is Render that fails when any placeholder is unresolved.
func RenderStrict(text string, vars map[string]string) (string, error) {
	out, missing := Render(text, vars)
	if len(missing) > 0 {
		return "", &MissingError{Keys: missing}
	}
	return out, nil
}
