package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mricases/internal/cases"
	"github.com/roach88/mricases/internal/redcap"
	"github.com/roach88/mricases/internal/report"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"kept": 12}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeREDCap, "export failed", "HTTP 403"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E010", resp.Error.Code)
	assert.Equal(t, "export failed", resp.Error.Message)
	assert.Equal(t, "HTTP 403", resp.Error.Details)
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			formatter.VerboseLog("Writing results to %s...", "cases.csv")

			if tt.wantLog {
				assert.Equal(t, "Writing results to cases.csv...\n", buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("Connecting to REDCap...")
	assert.Empty(t, out.String())
	assert.Contains(t, diag.String(), "Connecting to REDCap...")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "inner", errors.New("cause")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())

	cause := errors.New("permission denied")
	err := WrapExitError(ExitFailure, "export failed", cause)
	assert.Equal(t, "export failed: permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestRunErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"redcap", fmt.Errorf("%w: %w", report.ErrFetch, &redcap.APIError{StatusCode: 403}), ErrCodeREDCap},
		{"transport", fmt.Errorf("%w: %w", report.ErrFetch, errors.New("connection refused")), ErrCodeREDCap},
		{"columns", fmt.Errorf("%w: %w", report.ErrDecode, &cases.MissingColumnError{Column: "mri_missing"}), ErrCodeColumns},
		{"write", fmt.Errorf("%w: %w", report.ErrWrite, fs.ErrPermission), ErrCodeWriteFailed},
		{"history", fmt.Errorf("%w: %w", report.ErrRecord, errors.New("disk I/O error")), ErrCodeHistory},
		{"other", errors.New("report: no fetcher configured"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runErrorCode(tt.err))
		})
	}
}

func TestFail_JSONUsesGivenCode(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.fail(ExitCommandError, ErrCodeConfig, "failed to load config", fs.ErrNotExist)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestFail_TextWritesNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.fail(ExitFailure, ErrCodeWriteFailed, "export failed", errors.New("disk full"))
	assert.Equal(t, "export failed: disk full", err.Error())
	assert.Empty(t, buf.String())
}
