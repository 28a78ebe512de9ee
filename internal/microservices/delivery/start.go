package delivery

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"marketplace-system/internal/common/httpx"
	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/connections/rabbitmq"
	"marketplace-system/internal/feed"
	"marketplace-system/internal/livequeue"
	"marketplace-system/internal/microservices/delivery/handlers"
	"marketplace-system/internal/microservices/delivery/repository"
	"marketplace-system/internal/microservices/delivery/service"
)

// Run wires the courier-facing service: the live-queue feed consumer in
// the background and the HTTP API in the foreground, both stopping on
// ctx cancellation.
func Run(ctx context.Context, port int, db *sql.DB, rmq *rabbitmq.Client) error {
	lg := logger.New("delivery-service")

	repo := repository.New(db)
	pub := feed.NewPublisher(rmq, "delivery-service")
	queue := livequeue.NewProjection()
	svc := service.New(repo, pub, queue, lg)
	h := handlers.New(svc)

	consumer := service.NewFeedConsumer(rmq, repo.DeliveryRepo, queue, lg)
	feedDone := make(chan error, 1)
	go func() { feedDone <- consumer.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/delivery/queue", h.DeliveryHandler.GetQueue)
	mux.HandleFunc("POST /api/v1/delivery/orders/{order_number}/claim", h.DeliveryHandler.Claim)
	mux.HandleFunc("POST /api/v1/delivery/orders/{order_number}/status", h.DeliveryHandler.UpdateStatus)
	mux.HandleFunc("POST /api/v1/delivery/couriers/{name}/online", h.DeliveryHandler.CourierOnline)
	mux.HandleFunc("POST /api/v1/delivery/couriers/{name}/offline", h.DeliveryHandler.CourierOffline)
	mux.HandleFunc("POST /api/v1/delivery/couriers/{name}/heartbeat", h.DeliveryHandler.CourierHeartbeat)

	lg.Info("listening", map[string]any{"port": port})
	srv := httpx.New(":"+strconv.Itoa(port), mux)
	err := srv.Run(ctx)

	<-feedDone
	return err
}
