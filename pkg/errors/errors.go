// Package errors defines the error kinds surfaced by the index builder and
// an IndexError type that names the configuration and input path involved.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrParse         = errors.New("parse error")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrIO            = errors.New("io error")
	ErrWorkerFailure = errors.New("worker failure")
)

// IndexError attaches the configuration name and offending path to one of the
// sentinel kinds above.
type IndexError struct {
	Err     error
	Config  string
	Path    string
	Message string
	Cause   error
}

func (e *IndexError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Config != "" || e.Path != "" {
		b.WriteString(":")
	}
	if e.Config != "" {
		fmt.Fprintf(&b, " config=%s", e.Config)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *IndexError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Is makes every ErrInvalidConfig also match ErrParse.
func (e *IndexError) Is(target error) bool {
	return target == ErrParse && e.Err == ErrInvalidConfig
}

func New(kind error, path string, message string) *IndexError {
	return &IndexError{
		Err:     kind,
		Path:    path,
		Message: message,
	}
}

func Newf(kind error, path string, format string, args ...any) *IndexError {
	return &IndexError{
		Err:     kind,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap classifies cause under kind. The cause stays reachable via errors.Is.
func Wrap(kind error, path string, cause error, message string) *IndexError {
	return &IndexError{
		Err:     kind,
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// WithConfig stamps the configuration name onto err. If err is not an
// IndexError it is left unchanged in meaning and wrapped as ErrIO only when
// it carries no kind at all.
func WithConfig(err error, config string) error {
	if err == nil {
		return nil
	}
	var ie *IndexError
	if errors.As(err, &ie) {
		if ie.Config == "" {
			ie.Config = config
		}
		return err
	}
	return &IndexError{Err: ErrIO, Config: config, Cause: err}
}

// ExitCode maps an error to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrParse):
		return 2
	case errors.Is(err, ErrIO):
		return 3
	case errors.Is(err, ErrWorkerFailure):
		return 4
	default:
		return 1
	}
}
