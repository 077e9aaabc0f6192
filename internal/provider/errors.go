package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// RequestError is a rejected provider HTTP call.
type RequestError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed: HTTP %d: %s", e.Backend, e.StatusCode, e.Message)
}

// IsAuth reports whether the rejection is credential-class. Auth failures
// abort the whole job instead of being retried per scene.
func (e *RequestError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsAuthError reports whether err is a credential-class provider rejection.
func IsAuthError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.IsAuth()
}
