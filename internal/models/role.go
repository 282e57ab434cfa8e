// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package models

import "fmt"

// Role is the closed set of viewer roles. Authorization decisions go
// through SeesAllDevices rather than string comparisons at call sites,
// so the visibility rule lives in exactly one place.
type Role string

const (
	// RoleAdministrator has full visibility over all devices.
	RoleAdministrator Role = "administrator"

	// RoleCoastGuard has full visibility over all devices for
	// monitoring and response.
	RoleCoastGuard Role = "coast_guard"

	// RoleFisherfolk sees only devices it owns.
	RoleFisherfolk Role = "fisherfolk"
)

// ValidRoles contains all valid role names for validation.
var ValidRoles = []Role{RoleAdministrator, RoleCoastGuard, RoleFisherfolk}

// ParseRole converts a role claim string into a Role, rejecting
// anything outside the closed set.
func ParseRole(s string) (Role, error) {
	for _, r := range ValidRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// SeesAllDevices reports whether the role is privileged: privileged
// roles receive records for every device, restricted roles only for
// devices owned by their user id.
func (r Role) SeesAllDevices() bool {
	return r == RoleAdministrator || r == RoleCoastGuard
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}
