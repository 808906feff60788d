package alerts

import "errors"

// ErrNotFound indicates the alert does not exist.
var ErrNotFound = errors.New("alert not found")
