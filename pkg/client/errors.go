package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	v1 "closet/shared/contracts/auth/v1"
)

// ErrNoSession is returned by calls that need a signed-in user when there is none.
var ErrNoSession = errors.New("client: no session")

// StatusError is a non-2xx API response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("closet api: %d", e.StatusCode)
	}
	return fmt.Sprintf("closet api: %d %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == status
}

// IsCode reports whether err is a StatusError carrying the given error code.
func IsCode(err error, code string) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// statusError drains res and builds a StatusError from the error envelope.
// Bodies that are not JSON keep the status only.
func statusError(res *http.Response) error {
	defer func() { _ = res.Body.Close() }()

	se := &StatusError{StatusCode: res.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return se
	}
	var body v1.ErrorResponse
	if json.Unmarshal(raw, &body) == nil {
		se.Code = body.Code
		se.Message = body.Message
	}
	return se
}
