package v1

// APIPrefix is the mount point of every versioned route.
const APIPrefix = "/api/v1"

// Route paths relative to APIPrefix (wire-stable).
const (
	PathSignup         = "/users/signup"
	PathLogin          = "/users/login"
	PathRefresh        = "/users/refresh"
	PathLogout         = "/users/logout"
	PathMe             = "/users/me"
	PathDeleteMe       = "/users/deleteMe"
	PathUpdatePassword = "/users/updateMyPassword"
	PathClosets        = "/closets"
)

// RefreshCookieName is the cookie that carries the refresh token.
const RefreshCookieName = "refreshJwt"

// Machine-readable error codes.
const (
	CodeNoToken         = "no_token"
	CodeTokenExpired    = "token_expired"
	CodeInvalidToken    = "invalid_token"
	CodeStaleSubject    = "stale_subject"
	CodePasswordChanged = "password_changed"

	CodeRefreshInvalid  = "refresh_invalid"
	CodeSubjectNotFound = "subject_not_found"

	CodeInvalidRequest     = "invalid_request"
	CodeValidation         = "validation_failed"
	CodeDuplicateEmail     = "duplicate_email"
	CodeInvalidCredentials = "invalid_credentials"
	CodeNotFound           = "not_found"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal"
)

// Fixed messages are part of the contract;
// clients match on codes, people read the messages.
const (
	MessageNoToken         = "You are not logged in! Please log in to get access."
	MessageTokenExpired    = "Access token expired. Please refresh."
	MessageInvalidToken    = "Invalid token."
	MessageStaleSubject    = "The user belonging to this token no longer exists."
	MessagePasswordChanged = "User recently changed password! Please log in again."

	MessageRefreshInvalid  = "Refresh token invalid or expired."
	MessageSubjectNotFound = "User not found."

	MessageInternal = "Something went wrong"
)
