package userservice

import "strings"

// RoleForEmail classifies an address. Only the configured admin address is an admin;
// an empty admin address makes everyone a regular user.
func RoleForEmail(email, adminEmail string) Role {
	admin := strings.TrimSpace(adminEmail)
	if admin != "" && strings.EqualFold(strings.TrimSpace(email), admin) {
		return RoleAdmin
	}

	return RoleUser
}

func (u *User) IsAnonymous() bool {
	return u == &AnonymousUser
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
