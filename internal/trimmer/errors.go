package trimmer

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/diwenne/smashspeed-rn/internal/media"
)

// Outward failure codes.
const (
	CodeFileNotFound = "E_FILE_NOT_FOUND"
	CodeTrimFailed   = "E_TRIM_FAILED"
)

var (
	// ErrNoVideoTrack is returned when the source carries no video track.
	ErrNoVideoTrack = errors.New("source has no video track")
	// ErrEmptyResult is returned when the window selects no sample of a video track.
	ErrEmptyResult = errors.New("window contains no video samples")
	// ErrInvalidWindow is returned for a malformed or out of policy time window.
	ErrInvalidWindow = errors.New("invalid time window")
)

// Error is the failure reported to callers of a trim: a machine readable code,
// a message naming the cause and the underlying error.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fail classifies err into an *Error. Errors that already are *Error pass through.
func Fail(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	code := CodeTrimFailed
	if errors.Is(err, media.ErrSourceOpen) {
		code = CodeFileNotFound
	}
	return &Error{Code: code, Message: describe(err), Err: err}
}

// NewError builds an *Error with an explicit code.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func describe(err error) string {
	switch {
	case errors.Is(err, media.ErrSourceOpen):
		return "Source file could not be opened: " + err.Error()
	case errors.Is(err, ErrNoVideoTrack):
		return "No video track found in source"
	case errors.Is(err, ErrEmptyResult):
		return "Trim window selects no video frames: " + err.Error()
	case errors.Is(err, ErrInvalidWindow):
		return "Invalid trim window: " + err.Error()
	case errors.Is(err, media.ErrSourceFormat):
		return "Unreadable track format: " + err.Error()
	case errors.Is(err, media.ErrSampleTooLarge):
		return "Sample too large for transfer buffer: " + err.Error()
	case errors.Is(err, media.ErrWriterState):
		return "Output writer misuse: " + err.Error()
	default:
		return "Failed to trim video: " + err.Error()
	}
}

// CodeOf returns the outward code of err, or "" for nil.
func CodeOf(err error) string {
	if e := Fail(err); e != nil {
		return e.Code
	}
	return ""
}
