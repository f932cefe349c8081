// Package auth decides which caller identities may perform admin-only
// operations. Identity arrives as a verified wallet claim; signature
// verification happens upstream.
package auth

// Policy answers admin checks for engine operations.
type Policy interface {
	// IsAdmin reports whether the identity may perform admin-only operations.
	IsAdmin(identity string) bool
}

// StaticPolicy authorizes a configured allow-list of admin wallets plus an
// optional per-caller role lookup.
type StaticPolicy struct {
	admins map[string]struct{}
	roleFn func(identity string) bool
}

// NewStaticPolicy creates a policy from an admin wallet allow-list. roleFn
// may be nil; when set it is consulted for identities outside the list.
func NewStaticPolicy(adminWallets []string, roleFn func(identity string) bool) *StaticPolicy {
	admins := make(map[string]struct{}, len(adminWallets))
	for _, w := range adminWallets {
		if w != "" {
			admins[w] = struct{}{}
		}
	}
	return &StaticPolicy{admins: admins, roleFn: roleFn}
}

// Compile-time interface check.
var _ Policy = (*StaticPolicy)(nil)

// IsAdmin reports whether identity is in the allow-list or carries the
// admin role.
func (p *StaticPolicy) IsAdmin(identity string) bool {
	if identity == "" {
		return false
	}
	if _, ok := p.admins[identity]; ok {
		return true
	}
	if p.roleFn != nil {
		return p.roleFn(identity)
	}
	return false
}
