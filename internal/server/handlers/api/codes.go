package api

const (
	CodeInvalidRequest = "E_INVALID_REQUEST" // bad or invalid request
	CodeRateLimited    = "E_RATE_LIMITED"    // rate limit exceeded
	CodeInternalError  = "E_INTERNAL_ERROR"  // internal server error
	CodeAccessDenied   = "E_ACCESS_DENIED"   // the user may not perform the operation
	CodeNotFound       = "E_NOT_FOUND"       // the path does not exist or is not visible
	CodeConflict       = "E_CONFLICT"        // the target exists with an incompatible type

	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS" // token missing, expired or malformed
)

// messages never carry paths or internal details; those go to the request log
var messages = map[string]string{
	CodeInvalidRequest:         "invalid request",
	CodeRateLimited:            "rate limit exceeded",
	CodeInternalError:          "internal server error",
	CodeAccessDenied:           "access denied",
	CodeNotFound:               "not found",
	CodeConflict:               "conflict",
	CodeAuthInvalidCredentials: "invalid credentials",
}

// Message returns the public text for code.
func Message(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[CodeInternalError]
}
