package rbac

import "github.com/platinummonkey/apim-console/pkg/auth"

// BuildAuthorities unions the token permission claims with the resolved
// roles. Claim authorities are taken literally, roles render as
// "<SCOPE>:<NAME>", and empty names are skipped.
func BuildAuthorities(claims auth.TokenClaims, roles []Role) auth.AuthoritySet {
	set := auth.NewAuthoritySet()
	for _, p := range claims.Permissions {
		set.Add(auth.Authority(p.Authority))
	}
	for _, r := range roles {
		if r.Scope == "" || r.Name == "" {
			continue
		}
		set.Add(r.Authority())
	}
	return set
}
