package repository

import "database/sql"

type Repository struct {
	CheckoutRepo CheckoutRepositoryInterface
}

func New(db *sql.DB) *Repository {
	return &Repository{CheckoutRepo: NewCheckoutRepository(db)}
}
