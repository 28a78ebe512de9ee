package checkout

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"marketplace-system/internal/common/httpx"
	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/connections/rabbitmq"
	"marketplace-system/internal/feed"
	"marketplace-system/internal/microservices/checkout/handlers"
	"marketplace-system/internal/microservices/checkout/repository"
	"marketplace-system/internal/microservices/checkout/service"
)

// Run wires the checkout service and serves HTTP until ctx is canceled.
func Run(ctx context.Context, port int, db *sql.DB, rmq *rabbitmq.Client) error {
	lg := logger.New("checkout-service")

	repo := repository.New(db)
	pub := feed.NewPublisher(rmq, "checkout-service")
	svc := service.New(repo, pub, lg)
	h := handlers.New(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/orders", h.OrderHandler.AddOrder)
	mux.HandleFunc("GET /api/v1/orders/{order_number}", h.OrderHandler.GetOrder)

	lg.Info("listening", map[string]any{"port": port})
	srv := httpx.New(":"+strconv.Itoa(port), mux)
	return srv.Run(ctx)
}
