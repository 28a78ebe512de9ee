package service

import (
	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/livequeue"
	"marketplace-system/internal/microservices/delivery/repository"
)

type Service struct {
	DeliveryService DeliveryServiceInterface
}

func New(repo *repository.Repository, feed FeedPublisher, queue *livequeue.Projection, lg *logger.Logger) *Service {
	return &Service{DeliveryService: NewDeliveryService(repo.DeliveryRepo, feed, queue, lg)}
}
