package models

import (
	"errors"
	"fmt"
)

// ConfigurationError is returned when a required setting such as the API key is missing.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Message)
}

// UpstreamError wraps a failed or timed out call to the YouTube Data API.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type UpstreamError struct {
	Region     string
	StatusCode int
	Body       string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error for region %s: status %d: %s", e.Region, e.StatusCode, e.Body)
	}
	if e.Cause != nil {
		return fmt.Sprintf("upstream error for region %s: %v", e.Region, e.Cause)
	}
	return fmt.Sprintf("upstream error for region %s", e.Region)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// StoreError wraps a connectivity, authorization or write failure from the record store.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsUpstreamError returns true if err is or wraps an UpstreamError.
func IsUpstreamError(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// IsStoreError returns true if err is or wraps a StoreError.
func IsStoreError(err error) bool {
	var target *StoreError
	return errors.As(err, &target)
}
