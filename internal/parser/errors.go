package parser

import (
	"errors"
	"fmt"
)

// ErrMissingID is returned when the input is absent or carries no message id.
var ErrMissingID = errors.New("message has no id")

// InvalidHeaderError reports an address header that yielded no mailbox.
type InvalidHeaderError struct {
	Header string
	Value  string
}

func (e *InvalidHeaderError) Error() string {
	return fmt.Sprintf("invalid %s header %q: no address found", e.Header, e.Value)
}

// BodyDecodeError reports a part whose body data could not be decoded.
type BodyDecodeError struct {
	MimeType string
	Filename string
	Err      error
}

func (e *BodyDecodeError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("failed to decode %s part %q: %v", e.MimeType, e.Filename, e.Err)
	}
	return fmt.Sprintf("failed to decode %s part: %v", e.MimeType, e.Err)
}

func (e *BodyDecodeError) Unwrap() error {
	return e.Err
}
