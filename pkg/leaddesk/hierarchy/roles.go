package hierarchy

import "github.com/mikepea/leaddesk/pkg/leaddesk/models"

// ManagerRoles lists the roles a user of role r may report to.
// Admins report to nobody.
func ManagerRoles(r models.Role) []models.Role {
	switch r {
	case models.RoleAdmin:
		return nil
	case models.RoleDesk:
		return []models.Role{models.RoleAdmin}
	case models.RoleManager:
		return []models.Role{models.RoleDesk}
	case models.RoleAgent:
		return []models.Role{models.RoleManager, models.RoleDesk}
	}
	return nil
}

// CanReportTo reports whether a user of role r may have a manager of role manager.
func CanReportTo(r, manager models.Role) bool {
	for _, allowed := range ManagerRoles(r) {
		if allowed == manager {
			return true
		}
	}
	return false
}

// OwnsLeads reports whether users of role r can be handed leads, by a rule
// or by a person. Admins oversee leads but never own them.
func OwnsLeads(r models.Role) bool {
	switch r {
	case models.RoleDesk, models.RoleManager, models.RoleAgent:
		return true
	case models.RoleAdmin:
		return false
	}
	return false
}

// Rank orders roles for display, admin first.
func Rank(r models.Role) int {
	switch r {
	case models.RoleAdmin:
		return 0
	case models.RoleDesk:
		return 1
	case models.RoleManager:
		return 2
	case models.RoleAgent:
		return 3
	}
	return 4
}
