package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEntityType(t *testing.T) {
	got, err := ParseEntityType(" Employee ")
	assert.NoError(t, err)
	assert.Equal(t, EntityTypeEmployee, got)

	_, err = ParseEntityType("agency")
	assert.ErrorIs(t, err, ErrInvalidEntityType)
}

func TestParseDuration(t *testing.T) {
	for _, raw := range []string{"7", "30", "90", "365"} {
		_, err := ParseDuration(raw)
		assert.NoError(t, err, raw)
	}
	for _, raw := range []string{"0", "14", "31", "abc", ""} {
		_, err := ParseDuration(raw)
		assert.ErrorIs(t, err, ErrInvalidDuration, raw)
	}
}
