package backlog

import "errors"

var (
	// ErrNotAuthenticated is returned by mutations attempted while signed out.
	// No store write happens.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrMissingID is returned when a mutation is given an empty record id.
	ErrMissingID = errors.New("missing record id")
	// ErrInvalidFilter is returned by SetFilter for a name outside FilterOptions.
	ErrInvalidFilter = errors.New("invalid status filter")
)
