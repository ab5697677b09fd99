package request

import (
	"errors"
	"fmt"
	"net/http"
)

// These errors may be returned on request decoding failure.
var (
	ErrStructExpected = errors.New("pointer to struct expected")
	ErrInvalidForm    = errors.New("failed to parse form")
)

// StreamError indicates failure to read uploaded file with JSON payload.
//
// It is an infrastructure fault, so it is rendered as internal server error rather than bad request.
type StreamError struct {
	Name     string
	Filename string
	Err      error
}

// Error implements error.
func (e StreamError) Error() string {
	return fmt.Sprintf("read JSON form file %q (%s): %v", e.Name, e.Filename, e.Err)
}

// Unwrap returns parent error.
func (e StreamError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns HTTP status code.
func (e StreamError) HTTPStatus() int {
	return http.StatusInternalServerError
}
