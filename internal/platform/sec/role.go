// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "strings"

// # User Roles

// Role represents an authorization grant attached to an account.
//
// Roles are flat, not hierarchical: an account may carry several of them
// (e.g. a seller who also drives deliveries) and authorization checks test
// for membership, never for rank.
type Role string

const (
	// Buys on the marketplace; the default role for self-registration
	RoleCustomer Role = "CUSTOMER"

	// Operates a storefront inside their own tenant
	RoleSeller Role = "SELLER"

	// Platform operators with unrestricted access
	RoleAdmin Role = "ADMIN"

	// Back-office staff scoped to their tenant
	RoleStaff Role = "STAFF"

	// Fulfils deliveries for a tenant
	RoleDriver Role = "DRIVER"
)

// Valid reports whether the role is one of the known marketplace roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin, RoleStaff, RoleDriver:
		return true
	default:
		return false
	}
}

// # Role Sets

// ParseRoles converts raw claim strings into a set of known roles.
// Unknown values are dropped rather than rejected so that a newer authority
// can introduce roles without breaking older validators.
func ParseRoles(raw []string) []Role {
	roles := make([]Role, 0, len(raw))
	for _, value := range raw {
		role := Role(strings.ToUpper(strings.TrimSpace(value)))
		if role.Valid() {
			roles = append(roles, role)
		}
	}
	return roles
}

// RoleStrings converts a role set back to its wire representation.
func RoleStrings(roles []Role) []string {
	values := make([]string, len(roles))
	for i, role := range roles {
		values[i] = string(role)
	}
	return values
}
