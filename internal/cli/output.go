package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/mricases/internal/report"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Export failed (REDCap, decoding, output or history write)
	ExitCommandError = 2 // Command error (bad flags, invalid config, unreadable token)
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeConfig      = "E002"
	ErrCodeToken       = "E003"
	ErrCodeREDCap      = "E010"
	ErrCodeColumns     = "E011"
	ErrCodeWriteFailed = "E012"
	ErrCodeHistory     = "E013"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// runErrorCode maps the failed step of an export run to its JSON error code.
func runErrorCode(err error) string {
	switch {
	case errors.Is(err, report.ErrFetch):
		return ErrCodeREDCap
	case errors.Is(err, report.ErrDecode):
		return ErrCodeColumns
	case errors.Is(err, report.ErrWrite):
		return ErrCodeWriteFailed
	case errors.Is(err, report.ErrRecord):
		return ErrCodeHistory
	default:
		return ErrCodeGeneric
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E001", "E002", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success writes an "ok" response. Only JSON output has a response envelope;
// text-mode commands print their own results.
func (f *OutputFormatter) Success(data interface{}) error {
	return json.NewEncoder(f.Writer).Encode(CLIResponse{
		Status: "ok",
		Data:   data,
	})
}

// Error writes an "error" response envelope.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	return json.NewEncoder(f.Writer).Encode(CLIResponse{
		Status: "error",
		Error: &CLIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// fail reports err under errCode in JSON mode and wraps it for the exit code.
// In text mode the error is printed once by main.
func (f *OutputFormatter) fail(exitCode int, errCode, message string, err error) error {
	if f.Format == "json" {
		_ = f.Error(errCode, message, err.Error())
	}
	return WrapExitError(exitCode, message, err)
}
