package piv

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned by constructors before any byte is produced.
	ErrInvalidArgument = errors.New("piv: invalid argument")

	// ErrInvalidOperation is returned when a value is used in a state that does not allow it:
	// reading the payload of a failed response, building a command that was never
	// initialized, or driving the authentication protocol out of order.
	ErrInvalidOperation = errors.New("piv: invalid operation")

	// ErrMalformedResponse is returned when a reply reporting success has invalid content.
	ErrMalformedResponse = errors.New("piv: malformed response")

	// ErrInvalidKeyEncoding is returned when a key TLV does not match its key type.
	ErrInvalidKeyEncoding = fmt.Errorf("%w: invalid key encoding", ErrMalformedResponse)
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

func badKeyEncoding(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidKeyEncoding, fmt.Sprintf(format, args...))
}

func wrapOp(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}
