package devicemodel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
)

var (
	// ErrNotFound is returned when a manager lookup matches no node.
	ErrNotFound = errors.New("manager not found in root block")

	// ErrSingletonViolation is returned when a manager lookup matches more
	// than one node.
	ErrSingletonViolation = errors.New("manager must be a singleton")

	// ErrCycle is returned when a block is its own member, directly or
	// through nested blocks.
	ErrCycle = errors.New("block contains itself")
)

// QueryError reports a property the device did not answer during graph
// construction. Path is the role path of the node being built.
type QueryError struct {
	Path     string
	Property model.PropertyID
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: error getting property %s: %s", e.Path, e.Property, ncp.Detail(e.Err))
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// QueryErrors is the combined trail of every QueryError hit while building
// one graph.
type QueryErrors []*QueryError

func (e QueryErrors) Error() string {
	parts := make([]string, len(e))
	for i, qe := range e {
		parts[i] = qe.Error()
	}
	return "unable to query device model: " + strings.Join(parts, "; ")
}

func (e QueryErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, qe := range e {
		out[i] = qe
	}
	return out
}

// IsQueryError returns true if err carries at least one QueryError.
// Uses errors.As to handle wrapped errors.
func IsQueryError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return true
	}
	var qes QueryErrors
	return errors.As(err, &qes)
}
