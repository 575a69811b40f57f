package common

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL          = fmt.Errorf("Please enter a valid URL.")
	ErrUnsupportedURL      = fmt.Errorf("Only YouTube, Instagram or Facebook links are supported.")
	ErrMissingFormatID     = fmt.Errorf("Missing formatId.")
	ErrPlaylist            = fmt.Errorf("Playlists are not supported. Please use a single video URL.")
	ErrFormatUnavailable   = fmt.Errorf("Selected format is unavailable.")
	ErrTranscoderMissing   = fmt.Errorf("FFmpeg missing in runtime. Install ffmpeg or set binary.transcoder_path.")
	ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")
	ErrStatsDisabled       = fmt.Errorf("statistics are disabled")
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindServiceUnavailable
	KindUpstream
)

func (k Kind) String() string {
	return [...]string{"Internal", "BadRequest", "NotFound", "ServiceUnavailable", "Upstream"}[k]
}

// Error carries a Kind and a client facing message. Err keeps the cause for logs
// and errors.Is.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Wrap builds an Error whose message is the text of err.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Msg: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}

	if e.Err != nil {
		return e.Err.Error()
	}

	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Message returns the client facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}

	return err.Error()
}

// WithKind returns err unchanged when it already carries a Kind and wraps it
// with kind otherwise.
func WithKind(kind Kind, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	return Wrap(kind, err)
}
