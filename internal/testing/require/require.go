// Package require provides test assertion helpers that behave like
// testify's require package, but are implemented from scratch so this
// package carries no test-only dependencies. Every assertion here stops
// the current test immediately via TestingT.Fatal on failure.
package require

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// TestingT is satisfied by *testing.T and *testing.B, and narrow enough
// that a fake can be substituted in this package's own tests to capture
// the exact failure text an assertion would produce.
type TestingT interface {
	Fatal(args ...interface{})
}

// fail formats msg (optionally suffixed with ": "+formatWithArgs) followed
// by trailing, and calls t.Fatal with the result. trailing lets a caller
// like Equal append a multi-line expected/was block after the summary and
// any msgAndArgs suffix, rather than after the whole message.
func fail(t TestingT, msg, trailing string, formatWithArgs ...interface{}) {
	if extra := formatMsgAndArgs(formatWithArgs); extra != "" {
		msg = msg + ": " + extra
	}
	t.Fatal(msg + trailing)
}

func formatMsgAndArgs(args []interface{}) string {
	if len(args) == 0 {
		return ""
	}
	if format, ok := args[0].(string); ok && len(args) > 1 && strings.Contains(format, "%") {
		return fmt.Sprintf(format, args[1:]...)
	}
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}

// formatValue renders v the way it should read inside an assertion
// message: quoted for strings, a Go literal for byte slices and structs,
// and plain for everything else (numbers, bools).
func formatValue(v interface{}) string {
	if v == nil {
		return "<nil>"
	}
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return fmt.Sprintf("%#v", x)
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%#v", v)
	}
}

// typedValue renders v prefixed with its type, used when comparing two
// values whose types don't even match.
func typedValue(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%s(%v)", reflect.TypeOf(v), v)
}

func isMultilineKind(v interface{}) bool {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr, reflect.Map:
		return true
	default:
		return false
	}
}

// Contains requires substr to be in s.
func Contains(t TestingT, s, substr string, msgAndArgs ...interface{}) {
	if !strings.Contains(s, substr) {
		fail(t, fmt.Sprintf("expected %q to contain %q", s, substr), "", msgAndArgs...)
	}
}

// Equal requires expected and actual to be deeply equal.
func Equal(t TestingT, expected, actual interface{}, msgAndArgs ...interface{}) {
	if expected == nil && actual == nil {
		return
	}
	if actual == nil {
		fail(t, fmt.Sprintf("expected %s, but was nil", formatValue(expected)), "", msgAndArgs...)
		return
	}
	if expected == nil {
		fail(t, fmt.Sprintf("expected nil, but was %s", formatValue(actual)), "", msgAndArgs...)
		return
	}

	if reflect.TypeOf(expected) != reflect.TypeOf(actual) {
		var e string
		if s, ok := expected.(string); ok {
			e = fmt.Sprintf("%q", s)
		} else {
			e = typedValue(expected)
		}
		fail(t, fmt.Sprintf("expected %s, but was %s", e, typedValue(actual)), "", msgAndArgs...)
		return
	}

	if reflect.DeepEqual(expected, actual) {
		return
	}

	if isMultilineKind(expected) {
		fail(t, "unexpected value", fmt.Sprintf("\nexpected:\n\t%s\nwas:\n\t%s\n", formatValue(expected), formatValue(actual)), msgAndArgs...)
		return
	}
	fail(t, fmt.Sprintf("expected %s, but was %s", formatValue(expected), formatValue(actual)), "", msgAndArgs...)
}

// NotEqual requires expected and actual to not be deeply equal.
func NotEqual(t TestingT, expected, actual interface{}, msgAndArgs ...interface{}) {
	if reflect.DeepEqual(expected, actual) {
		fail(t, fmt.Sprintf("expected to not equal %s", formatValue(actual)), "", msgAndArgs...)
	}
}

func samePointer(expected, actual interface{}) bool {
	return expected == actual
}

// Same requires expected and actual to point to the same object.
func Same(t TestingT, expected, actual interface{}, msgAndArgs ...interface{}) {
	if !samePointer(expected, actual) {
		fail(t, fmt.Sprintf("expected %v to point to the same object as %v", actual, expected), "", msgAndArgs...)
	}
}

// NotSame requires expected and actual to not point to the same object.
func NotSame(t TestingT, expected, actual interface{}, msgAndArgs ...interface{}) {
	if samePointer(expected, actual) {
		fail(t, fmt.Sprintf("expected %v to point to a different object", actual), "", msgAndArgs...)
	}
}

// EqualError requires err to be non-nil and its Error() to equal msg.
func EqualError(t TestingT, err error, msg string, msgAndArgs ...interface{}) {
	if err == nil {
		fail(t, "expected an error, but was nil", "", msgAndArgs...)
		return
	}
	if err.Error() != msg {
		fail(t, fmt.Sprintf("expected error %q, but was %q", msg, err.Error()), "", msgAndArgs...)
	}
}

// Error requires err to be non-nil.
func Error(t TestingT, err error, msgAndArgs ...interface{}) {
	if err == nil {
		fail(t, "expected an error, but was nil", "", msgAndArgs...)
	}
}

// ErrorIs requires errors.Is(err, target).
func ErrorIs(t TestingT, err, target error, msgAndArgs ...interface{}) {
	if !errors.Is(err, target) {
		fail(t, fmt.Sprintf("expected errors.Is(%v, %v), but it wasn't", err, target), "", msgAndArgs...)
	}
}

// Nil requires v to be nil.
func Nil(t TestingT, v interface{}, msgAndArgs ...interface{}) {
	if v != nil {
		fail(t, fmt.Sprintf("expected nil, but was %v", v), "", msgAndArgs...)
	}
}

// NotNil requires v to be non-nil.
func NotNil(t TestingT, v interface{}, msgAndArgs ...interface{}) {
	if v == nil {
		fail(t, "expected to not be nil", "", msgAndArgs...)
	}
}

// NoError requires err to be nil.
func NoError(t TestingT, err error, msgAndArgs ...interface{}) {
	if err != nil {
		fail(t, fmt.Sprintf("expected no error, but was %v", err), "", msgAndArgs...)
	}
}

// True requires v to be true.
func True(t TestingT, v bool, msgAndArgs ...interface{}) {
	if !v {
		fail(t, "expected true, but was false", "", msgAndArgs...)
	}
}

// False requires v to be false.
func False(t TestingT, v bool, msgAndArgs ...interface{}) {
	if v {
		fail(t, "expected false, but was true", "", msgAndArgs...)
	}
}

// Zero requires v to be the zero value for its type.
func Zero(t TestingT, v interface{}, msgAndArgs ...interface{}) {
	if !reflect.ValueOf(v).IsZero() {
		fail(t, fmt.Sprintf("expected zero, but was %v", v), "", msgAndArgs...)
	}
}

// CapturePanic runs fn and, if it panics, returns the recovered value as an
// error: errors panic as themselves, fmt.Stringers via their String method,
// anything else via fmt.Sprintf("%v", ...). Returns nil if fn didn't panic.
//
// Grounded on internal/testing/require/require_test.go's TestCapturePanic
// table (panics with error/string/struct{} all produce the same .Error()
// text as the panicked value's natural string form).
func CapturePanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = fmt.Errorf("%v", v)
			}
		}
	}()
	fn()
	return
}
