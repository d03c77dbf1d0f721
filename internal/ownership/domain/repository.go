package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindEmployeeUserID(ctx context.Context, db *gorm.DB, employeeID snowflake.ID) (*snowflake.ID, error)
	ListCurrentEmployerOwnerships(ctx context.Context, db *gorm.DB, userID, employeeID snowflake.ID) ([]EstablishmentOwner, error)
	FindEstablishmentOwnership(ctx context.Context, db *gorm.DB, userID, establishmentID snowflake.ID) (*EstablishmentOwner, error)
}
