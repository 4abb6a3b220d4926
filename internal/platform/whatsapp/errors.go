package whatsapp

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoMessageID is returned when the API accepts a message but does not
// report its id.
var ErrNoMessageID = errors.New("whatsapp response contained no message id")

// APIError is a non-2xx response from the Cloud API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp API %d: %s", e.Status, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *APIError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}
