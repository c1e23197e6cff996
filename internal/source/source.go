package source

import (
	"errors"
	"fmt"
)

// ErrNoNewsletter is returned when the search window holds no message
// from any configured sender.
var ErrNoNewsletter = errors.New("no newsletter found in search window")

// Service identifies the remote system an error came from.
type Service string

const (
	ServiceIMAP Service = "imap"
	ServiceSMTP Service = "smtp"
	ServiceLLM  Service = "llm"
)

// AuthError indicates that authentication was rejected by a remote service.
type AuthError struct {
	Service Service
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Service, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
