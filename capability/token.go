// Package capability mints and checks short-lived retrieval capabilities.
//
// A capability is a compact EdDSA JWT signed by a service key that lives only
// in process memory. It authorizes exactly one (resource, action) pair and is
// never stored server-side.
package capability

import (
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ActionRetrieve is the only action capabilities currently grant.
const ActionRetrieve = "retrieve"

const resourcePrefix = "storage:"

// Claims are the signed fields of a capability token.
type Claims struct {
	jwt.RegisteredClaims
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Resource returns the scoped resource string for contentID.
func Resource(contentID string) string {
	return resourcePrefix + url.PathEscape(contentID)
}

// ExtractBearerToken parses an Authorization header and returns the bearer token.
func ExtractBearerToken(authHeader string) (string, error) {
	header := strings.TrimSpace(authHeader)
	if header == "" {
		return "", ErrMissingAuthorization
	}
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrInvalidAuthorization
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrInvalidAuthorization
	}
	return token, nil
}
