package domainerrors

import "fmt"

// FromPanic wraps a recovered panic value as an internal error.
func FromPanic(r any) error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: fmt.Errorf("panic: %v", r)}
}

// Recover turns a panic in the surrounding operation into an internal error
// assigned to *errp. recover only works when Recover itself is the deferred
// call:
//
//	defer dErrors.Recover(&err, report)
func Recover(errp *error, report func(recovered any)) {
	r := recover()
	if r == nil {
		return
	}
	if report != nil {
		report(r)
	}
	*errp = FromPanic(r)
}
