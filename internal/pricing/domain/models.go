// Package domain holds the VIP price list types.
package domain

import (
	"strconv"
	"strings"
)

// EntityType identifies what a VIP subscription is attached to.
type EntityType string

const (
	EntityTypeEmployee      EntityType = "employee"
	EntityTypeEstablishment EntityType = "establishment"
)

// Duration is a subscription length in days.
type Duration int

const (
	Duration7   Duration = 7
	Duration30  Duration = 30
	Duration90  Duration = 90
	Duration365 Duration = 365
)

var Durations = []Duration{Duration7, Duration30, Duration90, Duration365}

// Price is an immutable price list entry in whole THB.
type Price struct {
	Duration        Duration `json:"duration"`
	Price           int64    `json:"price"`
	DiscountPercent int      `json:"discount_percent"`
	OriginalPrice   *int64   `json:"original_price,omitempty"`
	IsPopular       bool     `json:"is_popular,omitempty"`
}

func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeEmployee, EntityTypeEstablishment:
		return true
	default:
		return false
	}
}

func ParseEntityType(value string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", ErrInvalidEntityType
	}
	return t, nil
}

func (d Duration) Valid() bool {
	switch d {
	case Duration7, Duration30, Duration90, Duration365:
		return true
	default:
		return false
	}
}

// Days returns the duration as a day count.
func (d Duration) Days() int { return int(d) }

func ParseDuration(value string) (Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, ErrInvalidDuration
	}
	d := Duration(n)
	if !d.Valid() {
		return 0, ErrInvalidDuration
	}
	return d, nil
}
