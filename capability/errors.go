package capability

import "errors"

var (
	// ErrMissingAuthorization indicates the Authorization header is absent.
	ErrMissingAuthorization = errors.New("capability: missing authorization header")

	// ErrInvalidAuthorization indicates the Authorization header is not a bearer token.
	ErrInvalidAuthorization = errors.New("capability: invalid authorization header")

	// ErrInvalidInput indicates an empty principal or content id.
	ErrInvalidInput = errors.New("capability: invalid input")

	// ErrMalformedToken indicates the token could not be parsed.
	ErrMalformedToken = errors.New("capability: malformed token")

	// ErrInvalidSignature indicates the token was not signed by the service key.
	ErrInvalidSignature = errors.New("capability: invalid token signature")

	// ErrIssuerMismatch indicates the token names another issuer.
	ErrIssuerMismatch = errors.New("capability: issuer mismatch")

	// ErrResourceMismatch indicates the token is scoped to another resource.
	ErrResourceMismatch = errors.New("capability: resource mismatch")

	// ErrActionMismatch indicates the token permits another action.
	ErrActionMismatch = errors.New("capability: action mismatch")

	// ErrNotYetValid indicates the current time is before the token's not-before.
	ErrNotYetValid = errors.New("capability: token not yet valid")

	// ErrExpired indicates the current time is at or past the token's expiry.
	ErrExpired = errors.New("capability: token expired")

	// ErrKeyUnavailable indicates the service signing key could not be generated.
	ErrKeyUnavailable = errors.New("capability: signing key unavailable")
)
