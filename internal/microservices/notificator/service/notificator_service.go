package service

import (
	"context"
	"encoding/json"

	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/connections/rabbitmq"
	"marketplace-system/internal/domain"
)

// NotificatorService consumes ready-for-pickup signals and hands them to
// the external push channel. Formatting and delivery (email, Telegram)
// are outside this system; here the signal is logged as dispatched.
type NotificatorService struct {
	rmqClient *rabbitmq.Client
	lg        *logger.Logger
}

func NewNotificatorService(rmqClient *rabbitmq.Client, lg *logger.Logger) *NotificatorService {
	return &NotificatorService{rmqClient: rmqClient, lg: lg}
}

func (ns *NotificatorService) Notify(ctx context.Context) error {
	ch := ns.rmqClient.Channel()
	msgs, err := ch.Consume(
		rabbitmq.NotificationsQueue,
		"notificator",
		false, // manual ack; poison messages go to the DLQ
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel("notificator", false)
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			var sig domain.ReadyForPickupSignal
			if err := json.Unmarshal(d.Body, &sig); err != nil {
				_ = d.Nack(false, false) // unparseable, dead-letter it
				continue
			}
			ns.lg.Info("courier_push_dispatched", map[string]any{
				"order_number":     sig.OrderNumber,
				"sub_order_number": sig.SubOrderNumber,
				"shop_id":          sig.ShopID,
				"parent_status":    sig.ParentStatus,
			})
			_ = d.Ack(false)
		}
	}
}
