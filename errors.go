package schemadrift

import "errors"

// Sentinel errors.
var (
	// ErrNotFound is returned when a required input (type file or source root) does not exist.
	ErrNotFound = errors.New("schemadrift: not found")

	// ErrConfigNotFound is returned when no .schemadrift.yaml is found.
	ErrConfigNotFound = errors.New("schemadrift: no .schemadrift.yaml found")

	// ErrInvalidConfig is returned when a config file fails validation.
	ErrInvalidConfig = errors.New("schemadrift: invalid config")

	// ErrUnknownFormat is returned when an unknown report format is requested.
	ErrUnknownFormat = errors.New("schemadrift: unknown format")

	// ErrMismatchesFound is returned when mismatches meet the fail-on threshold.
	ErrMismatchesFound = errors.New("schemadrift: mismatches found")
)
