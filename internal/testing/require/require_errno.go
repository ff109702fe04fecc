package require

import (
	"fmt"
	"syscall"
)

// EqualErrno requires have to be a syscall.Errno equal to want.
func EqualErrno(t TestingT, want syscall.Errno, have interface{}, msgAndArgs ...interface{}) {
	if have == nil {
		fail(t, "expected a syscall.Errno, but was nil", "", msgAndArgs...)
		return
	}
	errno, ok := have.(syscall.Errno)
	if !ok {
		fail(t, fmt.Sprintf("expected %v to be a syscall.Errno", have), "", msgAndArgs...)
		return
	}
	if want != errno {
		fail(t, fmt.Sprintf("expected Errno %#x(%s), but was %#x(%s)", uintptr(want), want, uintptr(errno), errno), "", msgAndArgs...)
	}
}
