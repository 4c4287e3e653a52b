package hierarchy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// ErrUnknownViewer is returned when a scope is requested for a user that is
// not in the tree.
var ErrUnknownViewer = errors.New("hierarchy: unknown viewer")

// Scope is the set of lead owners a viewer may see and assign to.
type Scope struct {
	Role models.Role
	// All is set for admins; UserIDs is ignored then.
	All               bool
	UserIDs           []uint
	IncludeUnassigned bool
}

// ScopeFor derives the scope of viewerID from its role:
// admin sees everything, desk sees itself, its descendants and unassigned
// leads, manager sees itself and its descendants, agent sees only itself.
func (t *Tree) ScopeFor(viewerID uint) (Scope, error) {
	role, ok := t.Role(viewerID)
	if !ok {
		return Scope{}, ErrUnknownViewer
	}

	switch role {
	case models.RoleAdmin:
		return Scope{Role: role, All: true, IncludeUnassigned: true}, nil
	case models.RoleDesk:
		return Scope{Role: role, UserIDs: t.selfAndBelow(viewerID), IncludeUnassigned: true}, nil
	case models.RoleManager:
		return Scope{Role: role, UserIDs: t.selfAndBelow(viewerID)}, nil
	case models.RoleAgent:
		return Scope{Role: role, UserIDs: []uint{viewerID}}, nil
	}
	return Scope{}, fmt.Errorf("hierarchy: %w", &models.ErrInvalidRole{Value: role.String()})
}

func (t *Tree) selfAndBelow(id uint) []uint {
	ids := append([]uint{id}, t.Subordinates(id)...)
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

func (s Scope) contains(id uint) bool {
	i := sort.Search(len(s.UserIDs), func(i int) bool { return s.UserIDs[i] >= id })
	return i < len(s.UserIDs) && s.UserIDs[i] == id
}

// Allows reports whether a lead owned by assignedTo is visible.
func (s Scope) Allows(assignedTo *uint) bool {
	if s.All {
		return true
	}
	if assignedTo == nil {
		return s.IncludeUnassigned
	}
	return s.contains(*assignedTo)
}

// CanAssign reports whether the viewer may reassign leads at all.
func (s Scope) CanAssign() bool {
	switch s.Role {
	case models.RoleAdmin, models.RoleDesk, models.RoleManager:
		return true
	case models.RoleAgent:
		return false
	}
	return false
}

// CanAssignTo reports whether the viewer may hand a lead to target.
func (s Scope) CanAssignTo(target uint) bool {
	if !s.CanAssign() {
		return false
	}
	return s.All || s.contains(target)
}

// Apply restricts a leads query to the scope. column names the owner column.
func (s Scope) Apply(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if s.All {
			return db
		}
		switch {
		case len(s.UserIDs) > 0 && s.IncludeUnassigned:
			return db.Where("("+column+" IN ? OR "+column+" IS NULL)", s.UserIDs)
		case len(s.UserIDs) > 0:
			return db.Where(column+" IN ?", s.UserIDs)
		case s.IncludeUnassigned:
			return db.Where(column + " IS NULL")
		}
		return db.Where("1 = 0")
	}
}
