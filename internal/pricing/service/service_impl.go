package service

import (
	pricingdomain "github.com/pattamap/pattamap-vip/internal/pricing/domain"
)

type Service struct{}

func NewService() pricingdomain.Service {
	return &Service{}
}

// GetPrice looks up a single entry. A miss is reported through ok.
func (s *Service) GetPrice(entityType pricingdomain.EntityType, duration pricingdomain.Duration) (pricingdomain.Price, bool) {
	for _, price := range pricesFor(entityType) {
		if price.Duration == duration {
			return clonePrice(price), true
		}
	}
	return pricingdomain.Price{}, false
}

func (s *Service) List(entityType pricingdomain.EntityType) ([]pricingdomain.Price, error) {
	if !entityType.Valid() {
		return nil, pricingdomain.ErrInvalidEntityType
	}
	table := pricesFor(entityType)
	out := make([]pricingdomain.Price, 0, len(table))
	for _, price := range table {
		out = append(out, clonePrice(price))
	}
	return out, nil
}

func clonePrice(p pricingdomain.Price) pricingdomain.Price {
	if p.OriginalPrice != nil {
		v := *p.OriginalPrice
		p.OriginalPrice = &v
	}
	return p
}
