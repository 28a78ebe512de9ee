package repository

import "database/sql"

type Repository struct {
	ShopRepo ShopRepositoryInterface
}

func New(db *sql.DB) *Repository {
	return &Repository{ShopRepo: NewShopRepository(db)}
}
