package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Dispatcher delivers notifications without ever failing the caller.
type Dispatcher interface {
	Notify(ctx context.Context, userID snowflake.ID, kind EventKind, payload Payload)
}
