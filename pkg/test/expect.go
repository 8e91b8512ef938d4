// Package test contains helpers shared by the package tests of the linker.
package test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kr/pretty"
)

func id(tags ...any) string {
	if len(tags) == 0 {
		return ""
	}
	s := make([]string, 0, len(tags))
	for _, t := range tags {
		s = append(s, fmt.Sprint(t))
	}
	return strings.Join(s, " ") + ": "
}

// ExpectSuccess tests argument v for a success condition suitable for its
// type. bool must be true, error must be nil.
func ExpectSuccess(t *testing.T, v any, tags ...any) bool {
	t.Helper()

	switch v := v.(type) {
	case bool:
		if !v {
			t.Errorf("%sexpected success (bool)", id(tags...))
			return false
		}
	case error:
		if v != nil {
			t.Errorf("%sexpected success (error: %v)", id(tags...), v)
			return false
		}
	case nil:
		return true
	default:
		t.Fatalf("%sunsupported type (%T) for expectation testing", id(tags...), v)
		return false
	}
	return true
}

// ExpectFailure is the inverse of ExpectSuccess. A nil value is a failed
// expectation.
func ExpectFailure(t *testing.T, v any, tags ...any) bool {
	t.Helper()

	switch v := v.(type) {
	case bool:
		if v {
			t.Errorf("%sexpected failure (bool)", id(tags...))
			return false
		}
	case error:
		if v == nil {
			t.Errorf("%sexpected failure (error)", id(tags...))
			return false
		}
	case nil:
		t.Errorf("%sexpected failure (nil)", id(tags...))
		return false
	default:
		t.Fatalf("%sunsupported type (%T) for expectation testing", id(tags...), v)
		return false
	}
	return true
}

// ExpectError checks that err wraps target.
func ExpectError(t *testing.T, err error, target error, tags ...any) bool {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("%sexpected error %q, got %v", id(tags...), target, err)
		return false
	}
	return true
}

func ExpectEquality[T comparable](t *testing.T, v T, expectedValue T, tags ...any) bool {
	t.Helper()
	if v != expectedValue {
		t.Errorf("%sequality test of type %T failed: '%v' does not equal '%v'", id(tags...), v, v, expectedValue)
		return false
	}
	return true
}

// DemandEquality is ExpectEquality but stops the test on a mismatch. Use it
// for values later assertions depend on, such as slice lengths.
func DemandEquality[T comparable](t *testing.T, v T, expectedValue T, tags ...any) {
	t.Helper()
	if v != expectedValue {
		t.Fatalf("%sequality test of type %T failed: '%v' does not equal '%v'", id(tags...), v, v, expectedValue)
	}
}

func DemandSuccess(t *testing.T, v any, tags ...any) {
	t.Helper()
	if !ExpectSuccess(t, v, tags...) {
		t.FailNow()
	}
}

// ExpectDeepEquality compares structured values and reports the differences.
func ExpectDeepEquality(t *testing.T, v any, expectedValue any, tags ...any) bool {
	t.Helper()
	diff := pretty.Diff(v, expectedValue)
	if len(diff) > 0 {
		t.Errorf("%svalues differ:\n%s", id(tags...), strings.Join(diff, "\n"))
		return false
	}
	return true
}
