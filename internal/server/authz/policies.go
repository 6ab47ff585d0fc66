package authz

import "github.com/dmitrijs2005/gophpress/internal/server/models"

var adminOnly = []models.Role{models.RoleAdmin}

// CreateArticle allows any authenticated caller.
func CreateArticle(c Caller) error {
	return Authorize(c, Requirement{Authenticated: true})
}

// ReadArticle allows everyone, including anonymous callers.
func ReadArticle(c Caller) error {
	return Authorize(c, Requirement{})
}

// ModifyArticle allows the article's author or an admin to update or delete it.
func ModifyArticle(c Caller, authorID string) error {
	return Authorize(c, Requirement{Authenticated: true, OwnerID: authorID, Bypass: adminOnly})
}

// ListUsers allows admins only.
func ListUsers(c Caller) error {
	return Authorize(c, Requirement{Authenticated: true, Roles: adminOnly})
}

// ReadUser allows everyone.
func ReadUser(c Caller) error {
	return Authorize(c, Requirement{})
}

// ReadMe allows any authenticated caller.
func ReadMe(c Caller) error {
	return Authorize(c, Requirement{Authenticated: true})
}

// UpdateUser allows the user themself or an admin.
func UpdateUser(c Caller, targetID string) error {
	return Authorize(c, Requirement{Authenticated: true, OwnerID: targetID, Bypass: adminOnly})
}

// UpdatePassword allows only the user themself. Admins get no bypass here.
func UpdatePassword(c Caller, targetID string) error {
	return Authorize(c, Requirement{Authenticated: true, OwnerID: targetID})
}

// DeleteUser allows admins only.
func DeleteUser(c Caller) error {
	return Authorize(c, Requirement{Authenticated: true, Roles: adminOnly})
}
