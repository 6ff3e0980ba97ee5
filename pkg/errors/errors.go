// Package errors provides structured error handling for CipherLink.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes.
const (
	ExitSuccess     = 0 // Successful execution
	ExitGeneral     = 1 // General/unknown error
	ExitInput       = 2 // Invalid input
	ExitRejected    = 3 // User rejected an interactive request
	ExitNotFound    = 4 // Resource not found
	ExitConflict    = 5 // Conflicting in-flight operation
	ExitUnavailable = 6 // Required external dependency unavailable
)

// CipherLinkError is the structured error type for CipherLink.
type CipherLinkError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *CipherLinkError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CipherLinkError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for CipherLinkError.
func (e *CipherLinkError) Is(target error) bool {
	var t *CipherLinkError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &CipherLinkError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &CipherLinkError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	// Wallet connection errors.
	ErrNoProvider = &CipherLinkError{
		Code:     "NO_PROVIDER",
		Message:  "no signing provider available",
		ExitCode: ExitUnavailable,
	}

	ErrNoChainID = &CipherLinkError{
		Code:     "NO_CHAIN_ID",
		Message:  "chain ID is required",
		ExitCode: ExitInput,
	}

	ErrNoAccounts = &CipherLinkError{
		Code:     "NO_ACCOUNTS",
		Message:  "provider reported no accounts",
		ExitCode: ExitUnavailable,
	}

	ErrUserRejected = &CipherLinkError{
		Code:     "USER_REJECTED",
		Message:  "request rejected by user",
		ExitCode: ExitRejected,
	}

	ErrAlreadyConnecting = &CipherLinkError{
		Code:     "ALREADY_CONNECTING",
		Message:  "connection already in progress",
		ExitCode: ExitConflict,
	}

	ErrNotConnected = &CipherLinkError{
		Code:     "NOT_CONNECTED",
		Message:  "wallet not connected",
		ExitCode: ExitGeneral,
	}

	ErrProviderNotFound = &CipherLinkError{
		Code:     "PROVIDER_NOT_FOUND",
		Message:  "signing provider not found",
		ExitCode: ExitNotFound,
	}

	// Network errors.
	ErrUnsupportedChain = &CipherLinkError{
		Code:     "UNSUPPORTED_CHAIN",
		Message:  "unsupported chain",
		ExitCode: ExitInput,
	}

	ErrNetworkError = &CipherLinkError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	// Confidential-session errors.
	ErrSDKLoad = &CipherLinkError{
		Code:     "SDK_LOAD_ERROR",
		Message:  "failed to load relayer SDK bundle",
		ExitCode: ExitUnavailable,
	}

	ErrSDKNotAvailable = &CipherLinkError{
		Code:     "SDK_NOT_AVAILABLE",
		Message:  "relayer SDK is not available",
		ExitCode: ExitUnavailable,
	}

	ErrMetadataUnavailable = &CipherLinkError{
		Code:     "METADATA_UNAVAILABLE",
		Message:  "confidential-computation deployment metadata unavailable",
		ExitCode: ExitUnavailable,
	}

	// Storage errors. Persistence is best-effort; this sentinel exists for
	// logging and tests, it is never returned across a public boundary.
	ErrStorage = &CipherLinkError{
		Code:     "STORAGE_FAILURE",
		Message:  "persistent storage access failed",
		ExitCode: ExitGeneral,
	}

	// Config-specific errors.
	ErrConfigNotFound = &CipherLinkError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &CipherLinkError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &CipherLinkError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown configuration key",
		ExitCode: ExitInput,
	}

	// Signature cache errors.
	ErrSignatureExpired = &CipherLinkError{
		Code:     "SIGNATURE_EXPIRED",
		Message:  "cached decryption signature has expired",
		ExitCode: ExitGeneral,
	}
)

// New creates a new CipherLinkError with the given code and message.
func New(code, message string) *CipherLinkError {
	return &CipherLinkError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ce *CipherLinkError
	if errors.As(err, &ce) {
		return &CipherLinkError{
			Code:       ce.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ce.Message),
			Details:    ce.Details,
			Suggestion: ce.Suggestion,
			Cause:      err,
			ExitCode:   ce.ExitCode,
		}
	}

	return &CipherLinkError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ce *CipherLinkError
	if errors.As(err, &ce) {
		return &CipherLinkError{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    details,
			Suggestion: ce.Suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &CipherLinkError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ce *CipherLinkError
	if errors.As(err, &ce) {
		return &CipherLinkError{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    ce.Details,
			Suggestion: suggestion,
			Cause:      ce.Cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return &CipherLinkError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// WithCause attaches an underlying cause to a sentinel error without
// losing its code or exit code.
func WithCause(err, cause error) error {
	if err == nil {
		return nil
	}
	if cause == nil {
		return err
	}

	var ce *CipherLinkError
	if errors.As(err, &ce) {
		return &CipherLinkError{
			Code:       ce.Code,
			Message:    ce.Message,
			Details:    ce.Details,
			Suggestion: ce.Suggestion,
			Cause:      cause,
			ExitCode:   ce.ExitCode,
		}
	}

	return fmt.Errorf("%w: %w", err, cause)
}

// ExitCode returns the exit code for an error.
// Nil errors return ExitSuccess; unstructured errors return ExitGeneral.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ce *CipherLinkError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}

	return ExitGeneral
}

// Code returns the machine-readable code for an error, or "GENERAL_ERROR"
// for unstructured errors.
func Code(err error) string {
	if err == nil {
		return ""
	}

	var ce *CipherLinkError
	if errors.As(err, &ce) {
		return ce.Code
	}

	return "GENERAL_ERROR"
}
