package service

import (
	"testing"

	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPriceMatchesPriceList(t *testing.T) {
	svc := NewService()

	cases := []struct {
		name       string
		entityType pricingdomain.EntityType
		duration   pricingdomain.Duration
		price      int64
		discount   int
		original   *int64
	}{
		{"employee 30 days", pricingdomain.EntityTypeEmployee, pricingdomain.Duration30, 3600, 10, original(4000)},
		{"establishment 7 days", pricingdomain.EntityTypeEstablishment, pricingdomain.Duration7, 3000, 0, nil},
		{"employee 365 days", pricingdomain.EntityTypeEmployee, pricingdomain.Duration365, 18250, 50, original(36500)},
		{"establishment 365 days", pricingdomain.EntityTypeEstablishment, pricingdomain.Duration365, 54750, 50, original(109500)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price, ok := svc.GetPrice(tc.entityType, tc.duration)
			require.True(t, ok)
			assert.Equal(t, tc.price, price.Price)
			assert.Equal(t, tc.discount, price.DiscountPercent)
			assert.Equal(t, tc.original, price.OriginalPrice)
		})
	}
}

func TestGetPriceMiss(t *testing.T) {
	svc := NewService()

	_, ok := svc.GetPrice(pricingdomain.EntityTypeEmployee, pricingdomain.Duration(14))
	assert.False(t, ok)

	_, ok = svc.GetPrice(pricingdomain.EntityType("agency"), pricingdomain.Duration30)
	assert.False(t, ok)
}

func TestListReturnsCopies(t *testing.T) {
	svc := NewService()

	prices, err := svc.List(pricingdomain.EntityTypeEmployee)
	require.NoError(t, err)
	require.Len(t, prices, 4)
	for i, d := range pricingdomain.Durations {
		assert.Equal(t, d, prices[i].Duration)
	}

	*prices[1].OriginalPrice = 1
	again, _ := svc.GetPrice(pricingdomain.EntityTypeEmployee, pricingdomain.Duration30)
	assert.EqualValues(t, 4000, *again.OriginalPrice)

	_, err = svc.List(pricingdomain.EntityType("agency"))
	assert.ErrorIs(t, err, pricingdomain.ErrInvalidEntityType)
}
