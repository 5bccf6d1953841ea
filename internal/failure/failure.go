// Package failure reports broken invariants of the host checker: a malformed path,
// an unbound type name, a mutable field used as a path element.
//
// These are programmer errors, not properties of the program being checked, so they
// abort the current call by panicking with a *Violation. Collaborators that want an
// error value instead wrap the call with Catch.
package failure

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cottand/occur/internal/log"
)

var logger = log.DefaultLogger.With("section", "failure")

type Violation struct {
	Message string
	stack   []byte
}

func (v *Violation) Error() string {
	return "contract violation: " + v.Message
}

// Origin returns the first stack frame outside of this package, or "" when unknown
func (v *Violation) Origin() string {
	lines := strings.Split(string(v.stack), "\n")
	// goroutine header, then pairs of function/location lines for
	// debug.Stack, Raise and the caller of Raise
	if len(lines) > 6 {
		return strings.TrimSpace(lines[6])
	}
	return ""
}

func (v *Violation) Stack() []byte { return v.stack }

// Raise aborts the current operation with a *Violation
func Raise(format string, args ...any) {
	v := &Violation{Message: fmt.Sprintf(format, args...), stack: debug.Stack()}
	logger.Error("contract violation", "message", v.Message, "at", v.Origin())
	panic(v)
}

// Catch runs body and returns the *Violation it raised, if any.
// Panics that are not violations are propagated unchanged.
func Catch(body func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if v, ok := r.(*Violation); ok {
			err = v
			return
		}
		panic(r)
	}()
	body()
	return nil
}
