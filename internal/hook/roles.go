package hook

import (
	"fmt"

	"github.com/elys-network/dfre/internal/types"
)

// Role names a privilege level for the hook's mutating entry points.
type Role string

const (
	// RoleOwner may change pool type parameters and the yield tax.
	RoleOwner Role = "owner"
	// RoleManager may drive operational entry points: fee pokes, lifecycle
	// transitions, tick range and yield source changes, tax collection.
	RoleManager Role = "manager"
)

// RoleChecker authorizes callers of privileged entry points.
type RoleChecker interface {
	// Require returns an error wrapping types.ErrInvalidCaller when the
	// caller does not hold the role.
	Require(caller string, role Role) error
}

// StaticRoles is a fixed account-to-roles assignment. The owner implicitly
// holds every role.
type StaticRoles struct {
	Owner    string
	Managers map[string]bool
}

func NewStaticRoles(owner string, managers ...string) *StaticRoles {
	set := make(map[string]bool, len(managers))
	for _, m := range managers {
		set[m] = true
	}
	return &StaticRoles{Owner: owner, Managers: set}
}

func (r *StaticRoles) Require(caller string, role Role) error {
	if caller == r.Owner {
		return nil
	}
	if role == RoleManager && r.Managers[caller] {
		return nil
	}
	return fmt.Errorf("account %s lacks role %s: %w", caller, role, types.ErrInvalidCaller)
}

// OpenRoles authorizes everyone. Simulation-only.
type OpenRoles struct{}

func (OpenRoles) Require(string, Role) error { return nil }
