package domain

import "errors"

var (
	ErrInvalidEntityType = errors.New("invalid_subscription_type")
	ErrInvalidDuration   = errors.New("invalid_duration")
	ErrPriceNotFound     = errors.New("price_not_found")
)
