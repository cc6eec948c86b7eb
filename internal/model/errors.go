package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a symbol could not be scored.
type ErrorKind string

const (
	KindInsufficientHistory ErrorKind = "InsufficientHistory"
	KindMalformed           ErrorKind = "Malformed"
	KindFetchFailure        ErrorKind = "FetchFailure"
)

// Sentinels for errors.Is matching against a DataError of the same kind.
var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrMalformed           = errors.New("malformed series")
	ErrFetchFailure        = errors.New("fetch failure")
)

// Sentinel returns the sentinel error for the kind, or nil for an unknown kind.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindInsufficientHistory:
		return ErrInsufficientHistory
	case KindMalformed:
		return ErrMalformed
	case KindFetchFailure:
		return ErrFetchFailure
	default:
		return nil
	}
}

// DataError is a typed, non-fatal failure attached to one symbol.
type DataError struct {
	Kind   ErrorKind
	Symbol string
	Index  int // offending bar index, -1 when not bar-specific
	Msg    string
	Err    error
}

func (e *DataError) Error() string {
	s := string(e.Kind)
	if e.Symbol != "" {
		s = e.Symbol + ": " + s
	}
	if e.Index >= 0 {
		s += fmt.Sprintf(" at bar %d", e.Index)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *DataError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *DataError) Is(target error) bool {
	return target != nil && target == e.Kind.Sentinel()
}

// KindOf extracts the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var de *DataError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	for _, k := range []ErrorKind{KindInsufficientHistory, KindMalformed, KindFetchFailure} {
		if errors.Is(err, k.Sentinel()) {
			return k, true
		}
	}
	return "", false
}
