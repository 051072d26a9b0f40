// Package authz holds the ownership and staff rules for posts, comments and analytics.
package authz

import "agora/internal/models"

// CanMutate reports whether p may update or delete a resource owned by
// ownerID: owners and staff may, everyone else may not.
func CanMutate(p models.Principal, ownerID uint) bool {
	return p.IsStaff || (p.ID != 0 && p.ID == ownerID)
}

// CanViewAnalytics reports whether p may read the comment breakdown.
func CanViewAnalytics(p models.Principal) bool {
	return p.IsStaff
}
