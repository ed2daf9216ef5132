package common

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// IsNil reports whether p is a nil interface or a typed nil pointer hiding
// behind one. Needed because a (*T)(nil) stored in an interface{} does not
// compare equal to untyped nil.
func IsNil(p interface{}) bool {
	return p == nil || (reflect.ValueOf(p).Kind() == reflect.Ptr && reflect.ValueOf(p).IsNil())
}

// CatchPanicOrError runs f and converts a recovered panic into an error, so
// that internal failures (which panic via Assertf instead of returning a
// backend.Error) can be asserted on like any other error in tests.
func CatchPanicOrError(f func() error) error {
	var err error
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			var ok bool
			if err, ok = r.(error); !ok {
				err = fmt.Errorf("%v", r)
			}
		}()
		err = f()
	}()
	return err
}

// RequireErrorWith asserts err is non-nil and its message contains every
// fragment.
func RequireErrorWith(t *testing.T, err error, fragments ...string) {
	require.Error(t, err)
	for _, f := range fragments {
		require.Contains(t, err.Error(), f)
	}
}

// RequirePanicOrErrorWith asserts f either panics or returns an error whose
// message contains every fragment.
func RequirePanicOrErrorWith(t *testing.T, f func() error, fragments ...string) {
	RequireErrorWith(t, CatchPanicOrError(f), fragments...)
}

// Assertf panics, wrapping ErrAssertionFailed, when cond is false. Arguments
// may be zero-arg closures (see EvalLazyArgs) so that expensive diagnostics
// are only computed on the failing path.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("assertion failed: "+format+": %w", append(EvalLazyArgs(args...), ErrAssertionFailed)...))
	}
}

// AssertNoError is Assertf(err == nil, ...) with err folded into the message.
func AssertNoError(err error, prefix ...string) {
	if err == nil {
		return
	}
	pref := "error"
	if len(prefix) > 0 {
		pref = strings.Join(prefix, " ")
	}
	Assertf(false, "%s: %v", pref, err)
}

// EvalLazyArgs resolves zero-arg closures in args to their results, passing
// everything else through unchanged. Lets call sites defer the cost of
// formatting a diagnostic until Assertf has confirmed it is actually needed.
func EvalLazyArgs(args ...any) []any {
	ret := make([]any, len(args))
	for i, arg := range args {
		switch funArg := arg.(type) {
		case func() string:
			ret[i] = funArg()
		case func() bool:
			ret[i] = funArg()
		case func() int:
			ret[i] = funArg()
		case func() uint:
			ret[i] = funArg()
		case func() any:
			ret[i] = funArg()
		default:
			ret[i] = arg
		}
	}
	return ret
}
