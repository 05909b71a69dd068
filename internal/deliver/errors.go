package deliver

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrFileNotFound matches every *MissingFileError.
var ErrFileNotFound = errors.New("deliver: trust file not found")

// MissingFileError names the trust file that is missing.
type MissingFileError struct {
	// Name is "CA", "cert" or "key".
	Name string
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("deliver: mTLS %s file not found: %s", e.Name, e.Path)
}

func (e *MissingFileError) Is(target error) bool {
	return target == ErrFileNotFound
}

func (e *MissingFileError) Unwrap() error {
	return e.Err
}

// StatusError is a completed exchange with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deliver: HTTP %d: %s", e.Code, e.Body)
}

// redactURL keeps scheme and host only; paths often embed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
