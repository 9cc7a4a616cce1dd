package services

import "errors"

var (
	// ErrNotConfigured is returned when an option needs a collaborator the service was built without
	ErrNotConfigured = errors.New("collaborator not configured")
	// ErrNoSymbols is returned for an empty batch
	ErrNoSymbols = errors.New("no symbols given")
	// ErrNoWorkbooks is returned when a directory holds no export workbooks
	ErrNoWorkbooks = errors.New("no export workbooks found")
)
