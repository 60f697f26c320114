package services

import "github.com/homeswift/homeswift-api/models"

// Actor is the authenticated caller of a service operation, resolved from the stored user row
type Actor struct {
	UserID uint
	Email  string
	Name   string
	Role   string
	IP     string
}

// SystemActor attributes writes the API makes on its own behalf
var SystemActor = Actor{Email: "system", Name: "system", Role: models.RoleSystem}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Label is how the actor is recorded in releasedBy/assignedBy style columns
func (a Actor) Label() string {
	if a.Email != "" {
		return a.Email
	}
	return a.Role
}

func (a Actor) idPtr() *uint {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}
