// Package domain models the user-to-entity relations used to authorize VIP purchases.
package domain

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type OwnerRole string

const (
	OwnerRoleOwner   OwnerRole = "owner"
	OwnerRoleManager OwnerRole = "manager"
)

// PermissionCanEditEmployees lets a manager act on employees of the establishment.
const PermissionCanEditEmployees = "can_edit_employees"

// EstablishmentOwner links a user account to an establishment they run.
type EstablishmentOwner struct {
	UserID          snowflake.ID      `gorm:"column:user_id"`
	EstablishmentID snowflake.ID      `gorm:"column:establishment_id"`
	OwnerRole       OwnerRole         `gorm:"column:owner_role"`
	Permissions     datatypes.JSONMap `gorm:"column:permissions"`
}

func (r OwnerRole) Valid() bool {
	switch r {
	case OwnerRoleOwner, OwnerRoleManager:
		return true
	default:
		return false
	}
}

// Has reports whether the permission flag is set to true.
func (o EstablishmentOwner) Has(permission string) bool {
	if o.Permissions == nil {
		return false
	}
	switch v := o.Permissions[permission].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}
