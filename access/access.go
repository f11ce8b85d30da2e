// Package access holds the trust boundary of the ledgers: identity
// normalisation and the set of operator identities allowed to perform
// administrative lifecycle transitions.
package access

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized indicates the caller lacks the trust level for an operation.
	ErrUnauthorized = errors.New("access: unauthorized")

	// ErrEmptyIdentity indicates an identity string is empty after normalisation.
	ErrEmptyIdentity = errors.New("access: identity is empty")
)

// Normalize returns the canonical form of an identity: trimmed and lower-cased.
// Identities are compared only in this form.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Same reports whether two identities are equal after normalisation.
// Empty identities never match.
func Same(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// Operators is an immutable set of trusted operator identities.
type Operators struct {
	ids map[string]struct{}
}

// NewOperators builds an operator set. Empty entries are ignored.
func NewOperators(ids ...string) *Operators {
	ops := &Operators{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if n := Normalize(id); n != "" {
			ops.ids[n] = struct{}{}
		}
	}
	return ops
}

// Contains reports whether caller is a trusted operator.
func (o *Operators) Contains(caller string) bool {
	if o == nil {
		return false
	}
	_, ok := o.ids[Normalize(caller)]
	return ok
}

// Require returns ErrUnauthorized unless caller is a trusted operator.
func (o *Operators) Require(caller string) error {
	if !o.Contains(caller) {
		return fmt.Errorf("%w: %q is not an operator", ErrUnauthorized, caller)
	}
	return nil
}

// List returns the normalised operator identities in sorted order.
func (o *Operators) List() []string {
	if o == nil {
		return nil
	}
	out := make([]string, 0, len(o.ids))
	for id := range o.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
