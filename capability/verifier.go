package capability

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/filecoin-project/go-clock"
	"github.com/golang-jwt/jwt/v5"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("filepay/capability")

// Verifier checks presented capabilities against the issuer's public key.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	publicKey ed25519.PublicKey
	issuer    string
	clock     clock.Clock
	parser    *jwt.Parser
}

// NewVerifier creates a verifier for tokens signed by publicKey under issuer.
// An empty issuer skips the issuer check.
func NewVerifier(publicKey ed25519.PublicKey, issuer string, clk clock.Clock) *Verifier {
	if clk == nil {
		clk = clock.New()
	}
	return &Verifier{
		publicKey: append(ed25519.PublicKey(nil), publicKey...),
		issuer:    issuer,
		clock:     clk,
		// Time claims are checked against the ledger clock below.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// VerifyRetrievalAccess reports whether token grants retrieval of contentID.
// The reason for a rejection is only logged.
func (v *Verifier) VerifyRetrievalAccess(token, contentID string) bool {
	if _, err := v.Verify(token, contentID, ActionRetrieve); err != nil {
		log.Debugw("capability rejected", "cid", contentID, "reason", err)
		return false
	}
	return true
}

// Verify checks token for (contentID, action) and returns its claims.
func (v *Verifier) Verify(token, contentID, action string) (*Claims, error) {
	if token == "" || contentID == "" {
		return nil, ErrMalformedToken
	}

	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, ErrIssuerMismatch
	}
	if claims.Resource != Resource(contentID) {
		return nil, ErrResourceMismatch
	}
	if claims.Action != action {
		return nil, ErrActionMismatch
	}
	if claims.NotBefore == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing validity window", ErrMalformedToken)
	}

	now := v.clock.Now()
	if now.Before(claims.NotBefore.Time) {
		return nil, ErrNotYetValid
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}
	return &claims, nil
}
