package apperrors

// ErrorCode is returned in the error_code field of mock api error responses
type ErrorCode string

const (
	ErrCodeAccessTokenExpired    ErrorCode = "access_token_expired"
	ErrCodeAuthenticationFailure ErrorCode = "authentication_error"
	ErrCodeAuthorizationFailure  ErrorCode = "authorization_error"
	ErrCodeForbidden             ErrorCode = "forbidden"
	ErrCodeInternalError         ErrorCode = "internal_error"
	ErrCodeInvalidRequest        ErrorCode = "invalid_request"
	ErrCodeMalformedBody         ErrorCode = "malformed_body"
	ErrCodeRateLimitExceeded     ErrorCode = "rate_limit_exceeded"
	ErrCodeTokenRevoked          ErrorCode = "token_revoked"
	ErrCodeUserAlreadyExists     ErrorCode = "user_already_exists"
	ErrCodeUserNotFound          ErrorCode = "user_not_found"
)

// ErrorResponse is the body of every mock api error response.
// The message field is what the api client surfaces to users.
type ErrorResponse struct {
	StatusCode int       `json:"-"`
	ErrorCode  ErrorCode `json:"error_code" example:"example_error_code"`
	Message    string    `json:"message"`
	ReqID      string    `json:"-"`
}
