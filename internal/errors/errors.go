// Package errors provides error handling for the facturas loader.
//
// It re-exports github.com/cockroachdb/errors so every package wraps,
// inspects and annotates errors the same way:
//
//	if err := sink.Store(ctx, ticket); err != nil {
//	    return errors.Wrap(err, "failed to store ticket")
//	}
//
// Record-level failures (bad header, bad item, ...) are not reported through
// this package; they are *types.ParseError and *types.ValidationError values
// carried inside the ticket. This package covers the loader's own failures.
package errors

import (
	crdb "github.com/cockroachdb/errors"

	"github.com/ginjaninja78/facturas-loader/internal/types"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	Unwrap       = crdb.Unwrap
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Sentinels for the loader's own failure classes.
// Wrap them to add context; match them with Is.
var (
	// ErrInvalidPath indicates the input file could not be read.
	ErrInvalidPath = New("invalid path")

	// ErrDBConnection indicates the sink could not reach its database.
	ErrDBConnection = New("failed database connection")

	// ErrValidationFailed indicates at least one invoice failed validation.
	ErrValidationFailed = New("validation failed")

	// ErrInvalidArguments indicates a command was called with bad arguments.
	ErrInvalidArguments = New("invalid number of arguments")
)

// KindOf maps an error onto the shared error taxonomy. Typed record errors
// keep their own kind; sentinels map to the loader kinds. The second return
// is false when err belongs to none of them.
func KindOf(err error) (types.ErrorKind, bool) {
	if err == nil {
		return "", false
	}

	var parseErr *types.ParseError
	if As(err, &parseErr) {
		return parseErr.Kind, true
	}
	var validationErr *types.ValidationError
	if As(err, &validationErr) {
		return validationErr.Kind, true
	}

	switch {
	case Is(err, ErrInvalidPath):
		return types.KindInvalidPath, true
	case Is(err, ErrDBConnection):
		return types.KindFailedDBConnection, true
	case Is(err, ErrInvalidArguments):
		return types.KindInvalidNumberOfArguments, true
	}
	return "", false
}
