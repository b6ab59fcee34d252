package account

import "strings"

// Role labels known to the CRM. RoleUser is the baseline role: every
// account carries it implicitly and it is never persisted.
const (
	RoleUser    = "ROLE_USER"
	RoleAdmin   = "ROLE_ADMIN"
	RoleManager = "ROLE_MANAGER"
)

// RoleSet holds the roles stored for an account. All mutation goes through
// Add/Remove so labels are normalized in exactly one place.
type RoleSet struct {
	stored []string
}

// NewRoleSet builds a role set from stored labels.
func NewRoleSet(roles ...string) RoleSet {
	var s RoleSet
	for _, role := range roles {
		s.Add(role)
	}
	return s
}

func normalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}

// Add inserts a role label. Empty labels and duplicates are ignored.
func (s *RoleSet) Add(role string) {
	normalized := normalizeRole(role)
	if normalized == "" {
		return
	}
	for _, existing := range s.stored {
		if existing == normalized {
			return
		}
	}
	s.stored = append(s.stored, normalized)
}

// Remove deletes a role from storage. Removing RoleUser has no visible
// effect on Effective since the baseline is re-added read-side.
func (s *RoleSet) Remove(role string) {
	normalized := normalizeRole(role)
	for i, existing := range s.stored {
		if existing == normalized {
			s.stored = append(s.stored[:i], s.stored[i+1:]...)
			return
		}
	}
}

// Has reports whether the role is among the effective roles.
func (s RoleSet) Has(role string) bool {
	normalized := normalizeRole(role)
	for _, existing := range s.Effective() {
		if existing == normalized {
			return true
		}
	}
	return false
}

// Effective returns the stored roles unioned with the baseline role.
// The result never contains duplicates and is never empty.
func (s RoleSet) Effective() []string {
	roles := make([]string, 0, len(s.stored)+1)
	roles = append(roles, s.stored...)
	for _, existing := range roles {
		if existing == RoleUser {
			return roles
		}
	}
	return append(roles, RoleUser)
}

// Stored returns the persisted labels, baseline excluded unless it was
// stored explicitly.
func (s RoleSet) Stored() []string {
	out := make([]string, len(s.stored))
	copy(out, s.stored)
	return out
}
