// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the devac CLI.
//
// This package defines UserError, a type that carries structured error information
// including what went wrong, why it happened, and how to fix it, and translates
// pkg/engerr's Kind taxonomy into one of three CLI exit codes.
//
// # Usage Example
//
// Creating and displaying errors:
//
//	err := errors.FromEngErr("Cannot write seed partition", underlyingErr)
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
//
// # Exit Codes
//
// Collapsed to the three-level scheme every devac command uses:
//   - ExitSuccess (0): successful execution
//   - ExitUserError (1): a failure the user can act on (lock held, bad entity ID, not found)
//   - ExitMisuse (2): bad CLI arguments or invalid invocation
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/kraklabs/devac/pkg/engerr"
)

// Exit codes, collapsed from the donor's eight-category scheme to the
// three levels SPEC_FULL §6 specifies for every devac command.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitUserError indicates a failure the user can act on: a locked
	// partition, an unresolved entity ID, a missing repo, an IO failure.
	ExitUserError = 1

	// ExitMisuse indicates bad CLI arguments or invalid invocation.
	ExitMisuse = 2

	// ExitInternal is the exit code FatalError uses for an error that is not
	// a *UserError; no devac command constructs it directly.
	ExitInternal = ExitUserError
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
//
// UserError also carries an exit code for consistent CLI exit behavior
// and optionally wraps an underlying error for error chain compatibility.
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred (diagnostic information).
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to this error.
	ExitCode int

	// Err is the underlying error that caused this error (optional).
	// This enables error wrapping and compatibility with errors.Is/As.
	Err error
}

// Error implements the error interface.
//
// It returns a simple error message string. If an underlying error is present,
// it appends that error's message for context.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for compatibility with errors.Is and errors.As.
//
// It returns the underlying error, allowing standard library error inspection
// functions to work with error chains.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a UserError with exit code ExitUserError, for any
// failure the user can act on (locked partition, I/O failure, not found).
func NewUserError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitUserError,
		Err:      err,
	}
}

// NewMisuseError creates a UserError with exit code ExitMisuse, for bad CLI
// arguments or invalid invocation. Misuse errors typically do not wrap an
// underlying error.
//
// Example:
//
//	return NewMisuseError(
//	    "--packages is required",
//	    "query needs at least one package directory to bind",
//	    "Run: devac query --packages ./pkg/foo --sql 'select * from nodes'",
//	)
func NewMisuseError(msg, cause, fix string) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitMisuse,
	}
}

// FromEngErr wraps an engerr-classified error as a UserError, picking a Fix
// hint appropriate to its Kind. Every devac command that calls into
// pkg/seedstore, pkg/hub, pkg/pipeline, or pkg/queryengine should surface
// failures through this constructor rather than inventing new Cause/Fix text
// per call site.
func FromEngErr(msg string, err error) *UserError {
	kind := engerr.KindOf(err)
	fix := ""
	switch kind {
	case engerr.KindConflict:
		fix = "Another writer holds the lock on this package/branch; wait for it to finish or remove a stale .lock file left by a crashed process."
	case engerr.KindNotFound:
		fix = "Run 'devac analyze' or 'devac register' first so the missing artifact exists."
	case engerr.KindTimeout:
		fix = "Retry; if this persists, the hub catalog or query engine may be under sustained contention."
	case engerr.KindUnavailable:
		fix = "Start the hub with 'devac serve', or rely on direct access if this command supports it without a running hub."
	}
	return &UserError{
		Message:  msg,
		Cause:    err.Error(),
		Fix:      fix,
		ExitCode: ExitUserError,
		Err:      err,
	}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output includes colored sections for Error (red/bold), Cause (yellow),
// and Fix (green). Color output respects the NO_COLOR environment variable
// and can be explicitly disabled with the noColor parameter.
//
// Example output:
//
//	Error: Workspace not initialized
//	Cause: .devac/config.yaml does not exist
//	Fix:   Run 'devac init' in this directory first
//
// Empty Cause or Fix fields are omitted from the output.
//
// Note: This method temporarily modifies the global color.NoColor state
// and restores it after formatting; it is not safe to call concurrently
// with other code that reads or writes color.NoColor.
func (e *UserError) Format(noColor bool) string {
	// Save and restore global color state to avoid side effects
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
//
// This structure is suitable for machine consumption and integrates with
// CLI commands that support --json output mode.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
//
// Fields with empty values (Cause, Fix) are omitted from JSON output
// using the omitempty tag. This keeps JSON output clean when additional
// context is not available.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code.
//
// If the error is a UserError, it uses Format() for colored output or
// ToJSON() for JSON mode. For non-UserError types, it prints a simple
// error message and exits with ExitInternal.
//
// This function never returns - it always calls os.Exit().
//
// Usage:
//
//	if err := doSomething(); err != nil {
//	    errors.FatalError(err, jsonMode)
//	}
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			// Encode error is intentionally ignored since we're about to exit.
			// If JSON encoding fails, the program will still exit with the correct code.
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	// Fallback for non-UserError
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
