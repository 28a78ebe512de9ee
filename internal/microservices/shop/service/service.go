package service

import (
	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/microservices/shop/repository"
)

type Service struct {
	ShopService ShopServiceInterface
}

func New(repo *repository.Repository, feed FeedPublisher, lg *logger.Logger) *Service {
	return &Service{ShopService: NewShopService(repo.ShopRepo, feed, lg)}
}
