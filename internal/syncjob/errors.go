package syncjob

import (
	"errors"
	"fmt"
)

// ErrAlreadyRun is returned when Run is called on a Job a second time.
var ErrAlreadyRun = errors.New("syncjob: job already ran")

// LookupError reports that the latest file URL could not be resolved.
type LookupError struct{ Err error }

func (e *LookupError) Error() string { return fmt.Sprintf("lookup latest file: %v", e.Err) }
func (e *LookupError) Unwrap() error { return e.Err }

// AuthError reports a credential or network failure while authenticating.
type AuthError struct{ Err error }

func (e *AuthError) Error() string { return fmt.Sprintf("authenticate: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// StreamError reports a transport failure while downloading, either before
// the response arrived or while its body was being read.
type StreamError struct{ Err error }

func (e *StreamError) Error() string { return fmt.Sprintf("download stream: %v", e.Err) }
func (e *StreamError) Unwrap() error { return e.Err }

// ParseError reports malformed CSV content.
type ParseError struct{ Err error }

func (e *ParseError) Error() string { return fmt.Sprintf("parse csv: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ArchiveError reports a failure copying the raw stream into object storage.
type ArchiveError struct{ Err error }

func (e *ArchiveError) Error() string { return fmt.Sprintf("archive stream: %v", e.Err) }
func (e *ArchiveError) Unwrap() error { return e.Err }

// Stage names the pipeline stage an error came from, or "" if err is not
// one of this package's stage errors.
func Stage(err error) string {
	var (
		le *LookupError
		ae *AuthError
		se *StreamError
		pe *ParseError
		ar *ArchiveError
	)
	switch {
	case errors.As(err, &le):
		return "lookup"
	case errors.As(err, &ae):
		return "auth"
	case errors.As(err, &se):
		return "stream"
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &ar):
		return "archive"
	default:
		return ""
	}
}
