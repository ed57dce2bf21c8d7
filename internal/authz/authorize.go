package authz

import "mailpoint.org/internal/address"

// DenyReason classifies an authorization denial for audit and error payloads.
type DenyReason string

const (
	DenyInvalidProfile       DenyReason = "invalid_profile"
	DenyActorInactive        DenyReason = "actor_inactive"
	DenyCapabilityNotGranted DenyReason = "capability_not_granted"
	DenyPrefixMismatch       DenyReason = "prefix_mismatch"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() Decision            { return Decision{Allowed: true} }
func deny(r DenyReason) Decision { return Decision{Reason: r} }

func (d Decision) Denied() bool { return !d.Allowed }

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "deny:" + string(d.Reason)
}

// Authorize decides whether the actor may exercise the capability on the
// target code. Order of checks: profile shape, account status, capability
// matrix, prefix scope.
func Authorize(p AuthorityProfile, target address.Code, capability Capability) Decision {
	return AuthorizeScope(p, address.Prefix(target), capability)
}

// AuthorizeScope is Authorize generalized to a prefix-shaped target: the
// actor's assigned prefix must cover the whole requested scope. Used by the
// query read path and by batch provisioning, where the target is a zone
// rather than a single code.
func AuthorizeScope(p AuthorityProfile, scope address.Prefix, capability Capability) Decision {
	if err := p.Validate(); err != nil {
		return deny(DenyInvalidProfile)
	}
	if p.Status != StatusActive {
		return deny(DenyActorInactive)
	}
	if !p.Level.Grants(capability) {
		return deny(DenyCapabilityNotGranted)
	}
	if p.NamespaceOverride && (capability == CapView || capability == CapEdit) {
		return allow()
	}
	if p.AssignedPrefix == "" || !p.AssignedPrefix.Covers(scope) {
		return deny(DenyPrefixMismatch)
	}
	return allow()
}
