package model

import (
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// FieldKind is the input type of a field.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindEmail  FieldKind = "email"
	KindNumber FieldKind = "number"
	KindDate   FieldKind = "date"
)

// Field is a named, typed input slot used to fill a {{key}} token.
type Field struct {
	Key   string    `json:"key" yaml:"key"`
	Label string    `json:"label" yaml:"label"`
	Value string    `json:"value" yaml:"value"`
	Kind  FieldKind `json:"kind" yaml:"kind"`
}

// ParseFieldKind maps a wire value to a kind; empty means text.
func ParseFieldKind(v string) (FieldKind, error) {
	switch k := FieldKind(strings.ToLower(v)); k {
	case "":
		return KindText, nil
	case KindText, KindEmail, KindNumber, KindDate:
		return k, nil
	}
	return "", fmt.Errorf("unknown field kind %q", v)
}

// ValidKey reports whether key is non-empty and token-safe.
func ValidKey(key string) bool {
	if key == "" || strings.Contains(key, "{{") || strings.Contains(key, "}}") {
		return false
	}
	return strings.IndexFunc(key, unicode.IsSpace) < 0
}

// ValidateFields checks keys are token-safe and unique and kinds are known.
func ValidateFields(fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if !ValidKey(f.Key) {
			return fmt.Errorf("field[%d]: unsafe key %q", i, f.Key)
		}
		if _, dup := seen[f.Key]; dup {
			return fmt.Errorf("field[%d]: duplicate key %q", i, f.Key)
		}
		seen[f.Key] = struct{}{}
		if _, err := ParseFieldKind(string(f.Kind)); err != nil {
			return fmt.Errorf("field[%d]: %w", i, err)
		}
	}
	return nil
}

var dateLayouts = []string{"2006-01-02", "02/01/2006"}

// CheckValue validates a non-empty value against the kind. Empty values are allowed:
// they render as the [label] fallback.
func (k FieldKind) CheckValue(v string) error {
	if v == "" {
		return nil
	}
	switch k {
	case KindEmail:
		if _, err := mail.ParseAddress(v); err != nil {
			return fmt.Errorf("bad email %q", v)
		}
	case KindNumber:
		n := strings.ReplaceAll(strings.ReplaceAll(v, ".", ""), ",", ".")
		if finite(v) || finite(n) {
			return nil
		}
		return fmt.Errorf("bad number %q", v)
	case KindDate:
		for _, l := range dateLayouts {
			if _, err := time.Parse(l, v); err == nil {
				return nil
			}
		}
		return fmt.Errorf("bad date %q", v)
	}
	return nil
}

// finite rejects NaN and infinities, which ParseFloat accepts.
func finite(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}
