package repository

import "database/sql"

type Repository struct {
	DeliveryRepo DeliveryRepositoryInterface
}

func New(db *sql.DB) *Repository {
	return &Repository{DeliveryRepo: NewDeliveryRepository(db)}
}
