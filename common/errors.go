package common

import "errors"

// ErrAssertionFailed is wrapped by every panic raised through Assertf. It lets
// code that deliberately provokes an internal-invariant failure (the backend
// package's internal failures panic rather than return an ErrorKind)
// recognize it with errors.Is even
// after the panic has been recovered and re-wrapped.
var ErrAssertionFailed = errors.New("assertion failed")
