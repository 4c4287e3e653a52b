package hierarchy

import (
	"context"
	"fmt"
	"sync"

	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
	"gorm.io/gorm"
)

// Directory caches the staff tree loaded from the users table. Handlers that
// change users call Invalidate; the next Tree call reloads.
type Directory struct {
	db *gorm.DB

	mu   sync.RWMutex
	tree *Tree
}

// NewDirectory creates an empty directory backed by db.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// Tree returns the cached tree, loading it on first use.
func (d *Directory) Tree(ctx context.Context) (*Tree, error) {
	d.mu.RLock()
	tree := d.tree
	d.mu.RUnlock()
	if tree != nil {
		return tree, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tree != nil {
		return d.tree, nil
	}

	var users []models.User
	if err := d.db.WithContext(ctx).Select("id", "full_name", "role", "manager_id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("hierarchy: load users: %w", err)
	}
	d.tree = NewTree(users)
	return d.tree, nil
}

// ScopeFor is a shortcut for Tree followed by Tree.ScopeFor.
func (d *Directory) ScopeFor(ctx context.Context, viewerID uint) (Scope, error) {
	tree, err := d.Tree(ctx)
	if err != nil {
		return Scope{}, err
	}
	return tree.ScopeFor(viewerID)
}

// Invalidate drops the cached tree.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.tree = nil
	d.mu.Unlock()
}
