// Package render substitutes {{key}} tokens in document bodies.
//
// Rendering is a pure function of the body and the field list: no state, no I/O.
// A value is written once and never scanned again, so a value that itself looks like
// a token stays literal. Tokens whose key is not declared pass through untouched so a
// preview stays renderable with an incomplete field list.
package render

import (
	"sort"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/and161185/signflow/internal/model"
)

const (
	tokOpen  = "{{"
	tokClose = "}}"
)

// Render replaces every {{key}} with the field value, or with "[label]" when the
// value is empty. When a key is declared twice the first declaration wins.
func Render(body string, fields []model.Field) string {
	if len(fields) == 0 || !strings.Contains(body, tokOpen) {
		return body
	}
	repl := make(map[string]string, len(fields))
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := repl[f.Key]; dup || f.Key == "" {
			continue
		}
		if f.Value != "" {
			repl[f.Key] = f.Value
		} else {
			repl[f.Key] = "[" + f.Label + "]"
		}
		keys = append(keys, f.Key)
	}
	// longest first: with keys "a" and "a}", "{{a}}}" is the token of "a}"
	sort.SliceStable(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); {
		j := strings.Index(body[i:], tokOpen)
		if j < 0 {
			b.WriteString(body[i:])
			break
		}
		b.WriteString(body[i : i+j])
		i += j
		if key, ok := declaredAt(body[i+len(tokOpen):], keys); ok {
			b.WriteString(repl[key])
			i += len(tokOpen) + len(key) + len(tokClose)
			continue
		}
		// not a known token: emit one brace and rescan, so "{{{k}}" still matches at +1
		b.WriteByte(body[i])
		i++
	}
	return b.String()
}

// declaredAt returns the first key k such that rest starts with k + "}}".
func declaredAt(rest string, keys []string) (string, bool) {
	for _, k := range keys {
		if strings.HasPrefix(rest, k) && strings.HasPrefix(rest[len(k):], tokClose) {
			return k, true
		}
	}
	return "", false
}

// keyAt returns the text between the "{{" at body[i] and the next "}}".
func keyAt(body string, i int) (string, bool) {
	rest := body[i+len(tokOpen):]
	end := strings.Index(rest, tokClose)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// Placeholders lists distinct token keys in order of first appearance.
func Placeholders(body string) []string {
	var (
		out  []string
		seen = map[string]struct{}{}
	)
	for i := 0; i < len(body); {
		j := strings.Index(body[i:], tokOpen)
		if j < 0 {
			break
		}
		i += j
		key, ok := keyAt(body, i)
		if !ok || !model.ValidKey(key) || strings.ContainsAny(key, "{}") {
			i++
			continue
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			out = append(out, key)
		}
		i += len(tokOpen) + len(key) + len(tokClose)
	}
	return out
}

// Unresolved returns keys of fields whose value is still empty, in declared order.
func Unresolved(fields []model.Field) []string {
	var out []string
	for _, f := range fields {
		if f.Value == "" {
			out = append(out, f.Key)
		}
	}
	return out
}

var (
	previewOnce   sync.Once
	previewPolicy *bluemonday.Policy
)

func policy() *bluemonday.Policy {
	previewOnce.Do(func() {
		previewPolicy = bluemonday.UGCPolicy()
	})
	return previewPolicy
}

// Sanitize strips scripts and unsafe attributes from a rendered HTML body before it
// is handed to a client for display.
func Sanitize(html string) string {
	return policy().Sanitize(html)
}

// Preview renders and sanitizes in one step.
func Preview(body string, fields []model.Field) string {
	return Sanitize(Render(body, fields))
}
