package notion

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx answer from the store.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notion: status %d", e.Status)
	}
	return fmt.Sprintf("notion: status %d: %s (%s)", e.Status, e.Message, e.Code)
}

func newAPIError(status int, body []byte) *APIError {
	r := gjson.GetManyBytes(body, "code", "message")
	return &APIError{Status: status, Code: r[0].String(), Message: r[1].String()}
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

func IsUnauthorized(err error) bool {
	s := statusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}
