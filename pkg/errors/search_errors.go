package errors

import (
	"errors"
	"fmt"
)

// GeocodeErrorKind classifies location resolution failures.
type GeocodeErrorKind string

const (
	GeocodeNotFound    GeocodeErrorKind = "NOT_FOUND"
	GeocodeRateLimited GeocodeErrorKind = "RATE_LIMITED"
	GeocodeUnavailable GeocodeErrorKind = "UNAVAILABLE"
)

// GeocodeError is returned by geocoders.
type GeocodeError struct {
	Kind     GeocodeErrorKind
	Location string
	Err      error
}

func (e *GeocodeError) Error() string {
	msg := fmt.Sprintf("geocode %s: %q", e.Kind, e.Location)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GeocodeError) Unwrap() error { return e.Err }

// Is matches another GeocodeError of the same kind, so sentinels like ErrGeocodeNotFound work with errors.Is.
func (e *GeocodeError) Is(target error) bool {
	t, ok := target.(*GeocodeError)
	return ok && t.Kind == e.Kind && t.Location == "" && t.Err == nil
}

// NewGeocodeError builds a GeocodeError.
func NewGeocodeError(kind GeocodeErrorKind, location string, err error) *GeocodeError {
	return &GeocodeError{Kind: kind, Location: location, Err: err}
}

var (
	ErrGeocodeNotFound    = &GeocodeError{Kind: GeocodeNotFound}
	ErrGeocodeRateLimited = &GeocodeError{Kind: GeocodeRateLimited}
	ErrGeocodeUnavailable = &GeocodeError{Kind: GeocodeUnavailable}
)

// AdapterErrorKind classifies facility source failures.
type AdapterErrorKind string

const (
	AdapterTimeout     AdapterErrorKind = "TIMEOUT"
	AdapterMalformed   AdapterErrorKind = "MALFORMED"
	AdapterUnavailable AdapterErrorKind = "UNAVAILABLE"
)

// AdapterError is a per-source failure. It never aborts a search on its own.
type AdapterError struct {
	Kind   AdapterErrorKind
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("source %s %s", e.Source, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AdapterError) Unwrap() error { return e.Err }

func (e *AdapterError) Is(target error) bool {
	t, ok := target.(*AdapterError)
	return ok && t.Kind == e.Kind && t.Source == "" && t.Err == nil
}

// NewAdapterError builds an AdapterError.
func NewAdapterError(kind AdapterErrorKind, source string, err error) *AdapterError {
	return &AdapterError{Kind: kind, Source: source, Err: err}
}

var (
	ErrAdapterTimeout     = &AdapterError{Kind: AdapterTimeout}
	ErrAdapterMalformed   = &AdapterError{Kind: AdapterMalformed}
	ErrAdapterUnavailable = &AdapterError{Kind: AdapterUnavailable}
)

// AdapterErrorKindOf returns the adapter error kind in err's chain; unknown errors count as unavailable.
func AdapterErrorKindOf(err error) AdapterErrorKind {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Kind
	}
	return AdapterUnavailable
}

// NormalizationErrorKind classifies per-record normalization failures.
type NormalizationErrorKind string

const (
	MissingRequiredField NormalizationErrorKind = "MISSING_REQUIRED_FIELD"
)

// NormalizationError means a raw record was dropped.
type NormalizationError struct {
	Kind     NormalizationErrorKind
	Field    string
	SourceID string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize record %q: %s: %s", e.SourceID, e.Kind, e.Field)
}

func (e *NormalizationError) Is(target error) bool {
	t, ok := target.(*NormalizationError)
	return ok && t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}

var ErrMissingRequiredField = &NormalizationError{Kind: MissingRequiredField}

// SearchErrorKind classifies session-fatal failures. Each kind maps to a distinct user prompt.
type SearchErrorKind string

const (
	// SearchGeocodeFailed: the location could not be resolved; the user should refine the input.
	SearchGeocodeFailed SearchErrorKind = "GEOCODE_FAILED"
	// SearchNoResults: sources answered but nothing matched; the user should relax filters.
	SearchNoResults SearchErrorKind = "NO_RESULTS"
	// SearchAllSourcesUnavailable: no source could be searched; the user should retry.
	SearchAllSourcesUnavailable SearchErrorKind = "ALL_SOURCES_UNAVAILABLE"
)

// SearchError is a session-fatal error surfaced to the caller.
type SearchError struct {
	Kind SearchErrorKind
	Err  error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("search %s", e.Kind)
}

func (e *SearchError) Unwrap() error { return e.Err }

func (e *SearchError) Is(target error) bool {
	t, ok := target.(*SearchError)
	return ok && t.Kind == e.Kind && t.Err == nil
}

// NewSearchError builds a SearchError.
func NewSearchError(kind SearchErrorKind, err error) *SearchError {
	return &SearchError{Kind: kind, Err: err}
}

var (
	ErrSearchGeocodeFailed         = &SearchError{Kind: SearchGeocodeFailed}
	ErrSearchNoResults             = &SearchError{Kind: SearchNoResults}
	ErrSearchAllSourcesUnavailable = &SearchError{Kind: SearchAllSourcesUnavailable}
)

// ErrSearchSuperseded is returned to callers waiting on a search that a newer query replaced.
var ErrSearchSuperseded = NewConflictError("search superseded by a newer query")
