// Package hierarchy models the manager/subordinate tree of staff users and the
// lead visibility each role derives from it.
package hierarchy

import (
	"sort"

	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
)

const noParent = -1

type node struct {
	id       uint
	role     models.Role
	name     string
	parent   int
	children []int
}

// Tree is an arena of staff users with index-based parent and child links.
// It is immutable once built.
type Tree struct {
	nodes []node
	index map[uint]int
}

// NewTree builds the tree from a flat list of users. Manager ids that do not
// refer to a listed user are treated as roots.
func NewTree(users []models.User) *Tree {
	t := &Tree{
		nodes: make([]node, len(users)),
		index: make(map[uint]int, len(users)),
	}
	for i, u := range users {
		t.nodes[i] = node{id: u.ID, role: u.Role, name: u.FullName, parent: noParent}
		t.index[u.ID] = i
	}
	for i, u := range users {
		if u.ManagerID == nil {
			continue
		}
		p, ok := t.index[*u.ManagerID]
		if !ok || p == i {
			continue
		}
		t.nodes[i].parent = p
		t.nodes[p].children = append(t.nodes[p].children, i)
	}
	return t
}

// Len returns the number of users in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Contains reports whether id is a known user.
func (t *Tree) Contains(id uint) bool {
	_, ok := t.index[id]
	return ok
}

// Role returns the role of a user.
func (t *Tree) Role(id uint) (models.Role, bool) {
	i, ok := t.index[id]
	if !ok {
		return 0, false
	}
	return t.nodes[i].role, true
}

// Name returns the full name of a user.
func (t *Tree) Name(id uint) (string, bool) {
	i, ok := t.index[id]
	if !ok {
		return "", false
	}
	return t.nodes[i].name, true
}

// Manager returns the manager of a user, if any.
func (t *Tree) Manager(id uint) (uint, bool) {
	i, ok := t.index[id]
	if !ok || t.nodes[i].parent == noParent {
		return 0, false
	}
	return t.nodes[t.nodes[i].parent].id, true
}

// Subordinates returns every direct and indirect report of id, sorted, not
// including id itself. The walk visits each node at most once, so a manager
// cycle in the stored data cannot loop forever.
func (t *Tree) Subordinates(id uint) []uint {
	start, ok := t.index[id]
	if !ok {
		return nil
	}

	visited := make([]bool, len(t.nodes))
	visited[start] = true
	queue := append([]int(nil), t.nodes[start].children...)
	var out []uint

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if visited[i] {
			continue
		}
		visited[i] = true
		out = append(out, t.nodes[i].id)
		queue = append(queue, t.nodes[i].children...)
	}

	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// IsSubordinate reports whether candidate sits anywhere below id.
func (t *Tree) IsSubordinate(id, candidate uint) bool {
	for _, s := range t.Subordinates(id) {
		if s == candidate {
			return true
		}
	}
	return false
}

// WouldCycle reports whether making managerID the manager of userID would
// close a loop in the tree.
func (t *Tree) WouldCycle(userID, managerID uint) bool {
	return userID == managerID || t.IsSubordinate(userID, managerID)
}

// UsersWithRole returns the ids of every user holding role, sorted.
func (t *Tree) UsersWithRole(role models.Role) []uint {
	var out []uint
	for _, n := range t.nodes {
		if n.role == role {
			out = append(out, n.id)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
