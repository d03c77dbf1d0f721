package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]Notification, error)
}
