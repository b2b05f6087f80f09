package sharedobject

import "errors"

var (
	// ErrMissingDependency is returned by SequenceNextCommand when one of
	// a command's DependsOn versions does not exist in the object store,
	// or exists but does not meet the requested liveness bar.
	ErrMissingDependency = errors.New("sharedobject: missing dependency")
	// ErrAlreadyExists names the case of a command's Creates version that
	// is already present in the object store. SequenceNextCommand does not
	// check for that case and does not return this error; it stores the
	// new object over the existing one.
	ErrAlreadyExists = errors.New("sharedobject: version already exists")
	// ErrOutOfOrder is returned by SetSuccess/SetFail when seq does not
	// match the executor's last_confirmed cursor.
	ErrOutOfOrder = errors.New("sharedobject: seq does not match last_confirmed")
	// ErrBusinessValidation wraps any error returned by the command
	// processor's Validate hook.
	ErrBusinessValidation = errors.New("sharedobject: business validation failed")
)
