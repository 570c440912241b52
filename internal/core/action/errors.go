package action

import "errors"

// ErrExecution marks an action handler that failed to run, as opposed to a
// business failure reported through its result.
var ErrExecution = errors.New("action execution failed")
