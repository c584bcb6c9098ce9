package bridge

import "errors"

var (
	// ErrValidation marks malformed caller input. Nothing was touched.
	ErrValidation = errors.New("validation error")
	// ErrStorage marks a database failure during cancellation.
	ErrStorage = errors.New("storage error")
)
