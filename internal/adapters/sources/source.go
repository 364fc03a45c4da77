// Package sources holds the facility data sources a search session fans out to.
package sources

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kceleski/agent-healthproassist-sub000/pkg/errors"
)

const (
	// DefaultNetworkTimeout bounds a fetch from a remote source.
	DefaultNetworkTimeout = 10 * time.Second
	// DefaultLocalTimeout bounds a fetch from an in-process dataset.
	DefaultLocalTimeout = 2 * time.Second
	// DefaultMaxRecords caps the records one fetch returns.
	DefaultMaxRecords = 500
)

// contextError converts a finished context into the matching adapter error.
func contextError(source string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewAdapterError(apperrors.AdapterTimeout, source, err)
	}
	return apperrors.NewAdapterError(apperrors.AdapterUnavailable, source, err)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalBool(s string) *bool {
	var v bool
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "available":
		v = true
	case "false", "no", "n", "0", "full", "waitlist":
		v = false
	default:
		return nil
	}
	return &v
}
