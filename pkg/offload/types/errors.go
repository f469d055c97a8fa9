package types

import "errors"

// Stage-level sentinel errors. These mark fatal stage preconditions, as
// opposed to per-item failures which stages collect and continue past.
var (
	// ErrInsufficientSpace indicates the destination volume lacks the
	// estimated space for the migration. Reported before any transfer
	// begins; the migrate stage performs no work after raising it.
	ErrInsufficientSpace = errors.New("insufficient space on destination volume")

	// ErrPrivilegeRequired indicates the link stage was invoked without
	// elevated privileges. Reported before any path is touched.
	ErrPrivilegeRequired = errors.New("elevated privileges required")

	// ErrNoReport indicates the scan report artifact is missing, so the
	// migrate stage has no input.
	ErrNoReport = errors.New("scan report not found")

	// ErrNoMapping indicates the path mapping artifact is missing, so the
	// clean and link stages have no input.
	ErrNoMapping = errors.New("path mapping not found")

	// ErrUnavailable indicates an optional OS capability (resource
	// sampling, free-space query, lock holder enumeration) is not
	// supported on this platform. Callers degrade rather than fail.
	ErrUnavailable = errors.New("capability unavailable on this platform")
)
