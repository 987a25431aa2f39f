package store

import "errors"

// ErrNotFound indicates a missing record lookup.
var ErrNotFound = errors.New("record not found")
