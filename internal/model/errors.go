package model

import "errors"

var (
	// ErrRootUnreadable is returned when the scan root cannot be enumerated.
	ErrRootUnreadable = errors.New("scan root unreadable")
	// ErrParse marks a source file whose syntax tree contains errors.
	ErrParse = errors.New("malformed source")
	// ErrFileTimeout marks a file whose read or parse exceeded its budget.
	ErrFileTimeout = errors.New("file budget exceeded")
	// ErrTrendStoreLocked is returned when another run holds the trend store.
	ErrTrendStoreLocked = errors.New("trend store locked by another run")
	// ErrNonMonotonicTimestamp is returned when appending a snapshot that is
	// not strictly newer than the latest stored one.
	ErrNonMonotonicTimestamp = errors.New("snapshot timestamp not after latest entry")
	// ErrUnknownCategory is returned for category names outside the closed set.
	ErrUnknownCategory = errors.New("unknown mutation category")
)
