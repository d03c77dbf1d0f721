package domain

type Service interface {
	GetPrice(entityType EntityType, duration Duration) (Price, bool)
	List(entityType EntityType) ([]Price, error)
}
