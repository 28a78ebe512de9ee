package service

import (
	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/microservices/checkout/repository"
)

type Service struct {
	CheckoutService CheckoutServiceInterface
}

func New(repo *repository.Repository, feed FeedPublisher, lg *logger.Logger) *Service {
	return &Service{CheckoutService: NewCheckoutService(repo.CheckoutRepo, feed, lg)}
}
