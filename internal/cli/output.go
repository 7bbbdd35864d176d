package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Process exit codes of exexdb.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the database answered, but with a miss, an inconsistency or a failed scenario
	ExitCommandError = 2 // the command never reached the database: bad flags, bad config, unopenable file
)

// ExitError carries the process exit code out of a command's RunE.
type ExitError struct {
	Code    int
	Message string
	Err     error // may be nil
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

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code main should use for err. Errors that
// carry no ExitError map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// textRenderer is implemented by results with a custom text form.
type textRenderer interface {
	renderText(w io.Writer, p *message.Printer)
}

// OutputFormatter writes command results as text or as one JSON envelope
// per invocation.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose lines; nil means Writer
	Verbose   bool
	RunID     string // same value as the run_id attribute on log lines
}

// CLIResponse is the JSON envelope of every exexdb command.
type CLIResponse struct {
	Status string    `json:"status"` // ok | error
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError describes a failed command inside a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // store error code, or E_* for command errors
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Printer returns a printer that groups digits in counts.
func (f *OutputFormatter) Printer() *message.Printer {
	return message.NewPrinter(language.English)
}

// Success writes data. Text output uses renderText when data provides it.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
			RunID:  f.RunID,
		})
	}

	if r, ok := data.(textRenderer); ok {
		r.renderText(f.Writer, f.Printer())
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a failure. Details appear in text output only with --verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
			RunID: f.RunID,
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a progress line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the writer for verbose lines.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
