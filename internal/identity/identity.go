// Package identity issues the opaque, room-scoped anonymous identities
// members are known by. Tokens carry no user-derived material, so two
// identities of the same user can never be linked.
package identity

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Issuer generates anonymous identity tokens. The zero value is ready to use.
type Issuer struct{}

// NewIssuer returns a new Issuer.
func NewIssuer() *Issuer {
	return &Issuer{}
}

// New returns a fresh anonymous identity. Every call returns a distinct
// token: the token is a digest of a random UUID, never of anything tied to
// the user, so rotation across a leave/rejoin boundary breaks correlation.
func (i *Issuer) New() string {
	seed := uuid.New()
	sum := sha256.Sum256(seed[:])
	return "anon_" + hex.EncodeToString(sum[:16])
}
