package capability

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/filecoin-project/go-clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultLifetime is how long an issued capability stays valid.
const DefaultLifetime = time.Hour

// Issued is a freshly minted capability.
type Issued struct {
	Token     string
	ID        string
	Resource  string
	NotBefore time.Time
	ExpiresAt time.Time
}

// ExpiresIn returns the lifetime remaining at issuance, in whole seconds.
func (i *Issued) ExpiresIn() int64 {
	return int64(i.ExpiresAt.Sub(i.NotBefore) / time.Second)
}

// Issuer signs retrieval capabilities. It does not check payment; callers
// must have verified it first.
//
// The signing key is generated on first use and held for the lifetime of
// the Issuer. It is never serialised.
type Issuer struct {
	clock    clock.Clock
	lifetime time.Duration

	once   sync.Once
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
	keyID  string
	keyErr error
}

// NewIssuer creates an Issuer whose tokens start at clk.Now() and last
// lifetime (DefaultLifetime when zero). clk should be the ledger clock.
func NewIssuer(clk clock.Clock, lifetime time.Duration) *Issuer {
	if clk == nil {
		clk = clock.New()
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Issuer{clock: clk, lifetime: lifetime}
}

func (i *Issuer) init() error {
	i.once.Do(func() {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			i.keyErr = fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
			return
		}
		sum := sha256.Sum256(pub)
		i.key, i.pub = priv, pub
		i.keyID = "filepay:" + hex.EncodeToString(sum[:8])
		log.Infow("capability signing key generated", "kid", i.keyID)
	})
	return i.keyErr
}

// Lifetime returns the validity period of issued tokens.
func (i *Issuer) Lifetime() time.Duration { return i.lifetime }

// KeyID returns the issuer identity embedded in tokens.
func (i *Issuer) KeyID() (string, error) {
	if err := i.init(); err != nil {
		return "", err
	}
	return i.keyID, nil
}

// PublicKey returns a copy of the verification key.
func (i *Issuer) PublicKey() (ed25519.PublicKey, error) {
	if err := i.init(); err != nil {
		return nil, err
	}
	return append(ed25519.PublicKey(nil), i.pub...), nil
}

// Verifier returns a verifier bound to this issuer's key and clock.
func (i *Issuer) Verifier() (*Verifier, error) {
	if err := i.init(); err != nil {
		return nil, err
	}
	return NewVerifier(i.pub, i.keyID, i.clock), nil
}

// IssueRetrievalToken mints a capability for principal to retrieve contentID.
func (i *Issuer) IssueRetrievalToken(principal, contentID string) (*Issued, error) {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return nil, fmt.Errorf("%w: principal is empty", ErrInvalidInput)
	}
	if contentID == "" {
		return nil, fmt.Errorf("%w: content id is empty", ErrInvalidInput)
	}
	if err := i.init(); err != nil {
		return nil, err
	}

	now := i.clock.Now().Truncate(time.Second)
	exp := now.Add(i.lifetime)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.keyID,
			Audience:  jwt.ClaimStrings{strings.ToLower(principal)},
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Resource: Resource(contentID),
		Action:   ActionRetrieve,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = i.keyID
	signed, err := token.SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("capability: sign: %w", err)
	}

	return &Issued{
		Token:     signed,
		ID:        claims.ID,
		Resource:  claims.Resource,
		NotBefore: now,
		ExpiresAt: exp,
	}, nil
}
