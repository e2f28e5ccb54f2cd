package service

import "strings"

// Actor is the authenticated user performing a timeline change.
type Actor struct {
	ID   uint
	Role string
}

func (a Actor) role() string {
	role := strings.ToLower(strings.TrimSpace(a.Role))
	if role == "" {
		return "system"
	}
	return role
}
