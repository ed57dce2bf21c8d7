package authz

import "context"

type profileContextKey struct{}

// ContextWithProfile attaches the resolved authority profile to the context.
// The profile still travels as an explicit argument into every core
// operation; the context carry is for transport-layer plumbing only.
func ContextWithProfile(ctx context.Context, p AuthorityProfile) context.Context {
	return context.WithValue(ctx, profileContextKey{}, &p)
}

// ProfileFromContext extracts the authority profile from the context.
func ProfileFromContext(ctx context.Context) (AuthorityProfile, bool) {
	if ctx == nil {
		return AuthorityProfile{}, false
	}
	v, ok := ctx.Value(profileContextKey{}).(*AuthorityProfile)
	if !ok || v == nil {
		return AuthorityProfile{}, false
	}
	return *v, true
}
