package auth

import (
	"sort"
	"time"
)

// CredentialOrigin records where a credential was found on the request
type CredentialOrigin string

const (
	OriginHeader CredentialOrigin = "header"
	OriginCookie CredentialOrigin = "cookie"
)

// Credential is a raw bearer credential as carried by the request, scheme included.
// It only lives for the duration of one request.
type Credential struct {
	Value  string
	Origin CredentialOrigin
}

// PermissionClaim is one entry of the token's "permissions" claim
type PermissionClaim struct {
	Authority string `json:"authority"`
}

// TokenClaims is the decoded payload of a verified token
type TokenClaims struct {
	Subject     string
	Email       string
	FirstName   string
	LastName    string
	ExpiresAt   time.Time
	Permissions []PermissionClaim
}

// Authority is a flat "<SCOPE>:<ROLE_NAME>" capability string
type Authority string

// AuthoritySet is an unordered set of authorities
type AuthoritySet map[Authority]struct{}

// NewAuthoritySet builds a set from the given authorities
func NewAuthoritySet(authorities ...Authority) AuthoritySet {
	set := make(AuthoritySet, len(authorities))
	for _, a := range authorities {
		set.Add(a)
	}
	return set
}

// Add inserts an authority; empty values are ignored
func (s AuthoritySet) Add(a Authority) {
	if a == "" {
		return
	}
	s[a] = struct{}{}
}

// Contains reports whether the authority is present
func (s AuthoritySet) Contains(a Authority) bool {
	_, ok := s[a]
	return ok
}

// Len returns the number of authorities
func (s AuthoritySet) Len() int {
	return len(s)
}

// Sorted returns the authorities in lexical order
func (s AuthoritySet) Sorted() []Authority {
	out := make([]Authority, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal reports whether both sets hold the same authorities
func (s AuthoritySet) Equal(other AuthoritySet) bool {
	if len(s) != len(other) {
		return false
	}
	for a := range s {
		if !other.Contains(a) {
			return false
		}
	}
	return true
}

// Principal is the authenticated identity of the caller plus its authorities.
// It is immutable once built.
type Principal struct {
	subjectID   string
	email       string
	firstName   string
	lastName    string
	authorities AuthoritySet
}

// NewPrincipal builds a principal from verified claims and the resolved authorities
func NewPrincipal(claims TokenClaims, authorities AuthoritySet) *Principal {
	owned := make(AuthoritySet, len(authorities))
	for a := range authorities {
		owned.Add(a)
	}
	return &Principal{
		subjectID:   claims.Subject,
		email:       claims.Email,
		firstName:   claims.FirstName,
		lastName:    claims.LastName,
		authorities: owned,
	}
}

// SubjectID returns the token subject
func (p *Principal) SubjectID() string { return p.subjectID }

// Email returns the optional email attribute
func (p *Principal) Email() string { return p.email }

// FirstName returns the optional first name attribute
func (p *Principal) FirstName() string { return p.firstName }

// LastName returns the optional last name attribute
func (p *Principal) LastName() string { return p.lastName }

// Authorities returns a copy of the principal's authority set
func (p *Principal) Authorities() AuthoritySet {
	out := make(AuthoritySet, len(p.authorities))
	for a := range p.authorities {
		out[a] = struct{}{}
	}
	return out
}

// HasAuthority checks a single authority
func (p *Principal) HasAuthority(a Authority) bool {
	return p.authorities.Contains(a)
}

// HasAnyAuthority checks whether at least one of the authorities is held
func (p *Principal) HasAnyAuthority(authorities ...Authority) bool {
	for _, a := range authorities {
		if p.authorities.Contains(a) {
			return true
		}
	}
	return false
}

// PrincipalView is the JSON representation of a principal
type PrincipalView struct {
	ID          string      `json:"id"`
	Email       string      `json:"email,omitempty"`
	FirstName   string      `json:"firstname,omitempty"`
	LastName    string      `json:"lastname,omitempty"`
	Authorities []Authority `json:"authorities"`
}

// View renders the principal for API responses
func (p *Principal) View() PrincipalView {
	return PrincipalView{
		ID:          p.subjectID,
		Email:       p.email,
		FirstName:   p.firstName,
		LastName:    p.lastName,
		Authorities: p.authorities.Sorted(),
	}
}
