package service

import pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"

func original(v int64) *int64 { return &v }

var employeePrices = []pricingdomain.Price{
	{Duration: pricingdomain.Duration7, Price: 1000, DiscountPercent: 0},
	{Duration: pricingdomain.Duration30, Price: 3600, DiscountPercent: 10, OriginalPrice: original(4000), IsPopular: true},
	{Duration: pricingdomain.Duration90, Price: 9000, DiscountPercent: 25, OriginalPrice: original(12000)},
	{Duration: pricingdomain.Duration365, Price: 18250, DiscountPercent: 50, OriginalPrice: original(36500)},
}

var establishmentPrices = []pricingdomain.Price{
	{Duration: pricingdomain.Duration7, Price: 3000, DiscountPercent: 0},
	{Duration: pricingdomain.Duration30, Price: 10800, DiscountPercent: 10, OriginalPrice: original(12000), IsPopular: true},
	{Duration: pricingdomain.Duration90, Price: 27000, DiscountPercent: 25, OriginalPrice: original(36000)},
	{Duration: pricingdomain.Duration365, Price: 54750, DiscountPercent: 50, OriginalPrice: original(109500)},
}

func pricesFor(entityType pricingdomain.EntityType) []pricingdomain.Price {
	switch entityType {
	case pricingdomain.EntityTypeEmployee:
		return employeePrices
	case pricingdomain.EntityTypeEstablishment:
		return establishmentPrices
	default:
		return nil
	}
}
