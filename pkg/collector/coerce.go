package collector

import (
	"fmt"
	"strconv"
	"time"
)

// pacemakerTimeFormat is the locale-independent timestamp layout crm_mon
// emits, e.g. "Mon Jan 10 20:35:28 2022". The _2 handles the ctime-style
// space padding of single-digit days.
const pacemakerTimeFormat = "Mon Jan _2 15:04:05 2006"

// CoercionError reports an attribute value that did not match its expected
// scalar shape, or a required attribute that was absent.
type CoercionError struct {
	Field string
	Value string
	Err   error
}

func (e *CoercionError) Error() string {
	if e.Value == "" && e.Err == nil {
		return fmt.Sprintf("%s: required attribute missing", e.Field)
	}
	return fmt.Sprintf("%s: bad value %q: %v", e.Field, e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// coerceBool maps pacemaker's string booleans to sample values. The mapping
// is closed: "true" and "1" are 1, everything else (including an absent
// attribute) is 0.
func coerceBool(s string) float64 {
	if s == "true" || s == "1" {
		return 1
	}
	return 0
}

// coerceTime parses a pacemaker timestamp into epoch seconds. Timestamps are
// wall-clock local time, matching how the cluster stack prints them. A
// garbled timestamp likely means a schema change, so it fails hard rather
// than yielding zero.
func coerceTime(field, s string) (float64, error) {
	if s == "" {
		return 0, &CoercionError{Field: field}
	}
	t, err := time.ParseInLocation(pacemakerTimeFormat, s, time.Local)
	if err != nil {
		return 0, &CoercionError{Field: field, Value: s, Err: err}
	}
	return float64(t.Unix()), nil
}

// coerceInt parses a required integer attribute. An absent attribute is a
// hard error, not a defaulted zero.
func coerceInt(field, s string) (float64, error) {
	if s == "" {
		return 0, &CoercionError{Field: field}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &CoercionError{Field: field, Value: s, Err: err}
	}
	return float64(v), nil
}

// coerceFloat parses a required numeric attribute, same rules as coerceInt.
func coerceFloat(field, s string) (float64, error) {
	if s == "" {
		return 0, &CoercionError{Field: field}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &CoercionError{Field: field, Value: s, Err: err}
	}
	return v, nil
}
