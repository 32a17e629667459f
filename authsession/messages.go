package authsession

import (
	"net/http"

	"github.com/jrsteele09/go-rag-client/apiclient"
	"github.com/jrsteele09/go-rag-client/internal/errors"
)

// User-facing failure messages.
const (
	MsgInvalidCredentials   = "Invalid email or password"
	MsgInvalidInput         = "Invalid input"
	MsgServerError          = "Server error"
	MsgNoConnection         = "No connection to the server"
	MsgNoResponse           = "No response from the server. Check your internet connection."
	MsgSessionExpired       = "Your session has expired. Please sign in again."
	MsgNotSignedIn          = "You are not signed in"
	MsgLoginFailed          = "Login failed"
	MsgRegisterFailed       = "Registration failed"
	MsgChangePasswordFailed = "Failed to change password"
	MsgResetRequestFailed   = "Failed to request a password reset"
	MsgResetConfirmFailed   = "Failed to reset the password"
	MsgProfileLoadFailed    = "Failed to load profile"
)

// failureMessage maps err to a user-facing message. Status mapping comes
// first, then the server's detail text, then fallback.
func failureMessage(err error, fallback string) string {
	var validation *apiclient.ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}
	var refreshErr *apiclient.RefreshError
	if errors.As(err, &refreshErr) {
		return MsgSessionExpired
	}
	if apiclient.IsConnectionError(err) {
		return MsgNoResponse
	}

	switch status := apiclient.StatusCode(err); {
	case status == http.StatusUnauthorized:
		return MsgInvalidCredentials
	case status == http.StatusUnprocessableEntity:
		return MsgInvalidInput
	case status >= http.StatusInternalServerError:
		return MsgServerError
	}
	if detail := apiclient.Detail(err); detail != "" {
		return detail
	}
	return fallback
}
