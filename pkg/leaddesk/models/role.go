package models

import (
	"database/sql/driver"
	"fmt"
)

// Role is a staff member's place in the visibility hierarchy.
// The zero value is not a valid role.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleDesk
	RoleManager
	RoleAgent
)

// AllRoles lists every role from the top of the hierarchy down.
var AllRoles = []Role{RoleAdmin, RoleDesk, RoleManager, RoleAgent}

// ErrInvalidRole is returned when a role string is not one of the four known roles.
type ErrInvalidRole struct {
	Value string
}

func (e *ErrInvalidRole) Error() string {
	return fmt.Sprintf("invalid role %q", e.Value)
}

// ParseRole converts the stored/wire form into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "desk":
		return RoleDesk, nil
	case "manager":
		return RoleManager, nil
	case "agent":
		return RoleAgent, nil
	}
	return 0, &ErrInvalidRole{Value: s}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleDesk:
		return "desk"
	case RoleManager:
		return "manager"
	case RoleAgent:
		return "agent"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleAdmin && r <= RoleAgent
}

// MarshalText encodes the role as its lowercase name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, &ErrInvalidRole{Value: r.String()}
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a lowercase role name.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the role as text.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, &ErrInvalidRole{Value: r.String()}
	}
	return r.String(), nil
}

// Scan reads a role stored as text.
func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	case nil:
		*r = 0
		return nil
	}
	return fmt.Errorf("cannot scan %T into Role", src)
}

// GormDataType keeps the column a short varchar on every dialect.
func (Role) GormDataType() string {
	return "varchar(20)"
}
