package handlers

const (
	OAuthNonceCookieName = "oauth_nonce"

	RequestIDHeader = "X-Request-ID"

	ErrInvalidRequestBody = "Invalid request body"
)
