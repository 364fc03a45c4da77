package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchError_IsMatchesKind(t *testing.T) {
	geoErr := NewGeocodeError(GeocodeNotFound, "Zzyzx Nowhere", nil)
	err := fmt.Errorf("session: %w", NewSearchError(SearchGeocodeFailed, geoErr))

	assert.True(t, errors.Is(err, ErrSearchGeocodeFailed))
	assert.False(t, errors.Is(err, ErrSearchNoResults))
	assert.True(t, errors.Is(err, ErrGeocodeNotFound))
	assert.False(t, errors.Is(err, ErrGeocodeRateLimited))
}

func TestAdapterErrorKindOf(t *testing.T) {
	timeout := NewAdapterError(AdapterTimeout, "places", context.DeadlineExceeded)
	assert.Equal(t, AdapterTimeout, AdapterErrorKindOf(fmt.Errorf("wrap: %w", timeout)))
	assert.True(t, errors.Is(timeout, ErrAdapterTimeout))
	assert.True(t, errors.Is(timeout, context.DeadlineExceeded))
	assert.Equal(t, AdapterUnavailable, AdapterErrorKindOf(errors.New("boom")))
}

func TestNormalizationError_IsField(t *testing.T) {
	err := &NormalizationError{Kind: MissingRequiredField, Field: "name", SourceID: "7"}
	assert.True(t, errors.Is(err, ErrMissingRequiredField))
	assert.True(t, errors.Is(err, &NormalizationError{Kind: MissingRequiredField, Field: "name"}))
	assert.False(t, errors.Is(err, &NormalizationError{Kind: MissingRequiredField, Field: "location"}))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeConflict, TypeOf(fmt.Errorf("x: %w", ErrSearchSuperseded)))
	assert.Equal(t, ErrorTypeInternal, TypeOf(errors.New("plain")))
}
