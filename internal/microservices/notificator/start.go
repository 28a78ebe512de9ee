package notificator

import (
	"context"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/connections/rabbitmq"
	"marketplace-system/internal/microservices/notificator/service"
)

// Run consumes the notifications queue until ctx is canceled.
func Run(ctx context.Context, rmqClient *rabbitmq.Client) error {
	lg := logger.New("notification-subscriber")
	svc := service.NewNotificatorService(rmqClient, lg)
	return svc.Notify(ctx)
}
