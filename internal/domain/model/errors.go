package model

import (
	"errors"
	"fmt"
)

// ErrMalformedProfile marks stored profile data that cannot be parsed.
var ErrMalformedProfile = errors.New("malformed profile")

// MalformedProfileError reports which stored field failed to parse.
type MalformedProfileError struct {
	Field string
	Cause error
}

func (e *MalformedProfileError) Error() string {
	return fmt.Sprintf("malformed profile field %q: %v", e.Field, e.Cause)
}

func (e *MalformedProfileError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrMalformedProfile) hold for every MalformedProfileError.
func (e *MalformedProfileError) Is(target error) bool { return target == ErrMalformedProfile }

// ErrInvalidFeatures marks feature values that may not be stored.
var ErrInvalidFeatures = errors.New("invalid audio features")

// Reasons carried by InvalidFeatureError.
var (
	ErrNotFinite  = errors.New("value is not finite")
	ErrNegative   = errors.New("value is negative")
	ErrOutOfRange = errors.New("value out of [0,1]")
)

// InvalidFeatureError reports a feature or weight rejected before it is stored.
type InvalidFeatureError struct {
	Field string
	Value float64
	Cause error
}

func (e *InvalidFeatureError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Cause)
}

func (e *InvalidFeatureError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrInvalidFeatures) hold for every InvalidFeatureError.
func (e *InvalidFeatureError) Is(target error) bool { return target == ErrInvalidFeatures }
