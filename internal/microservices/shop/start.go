package shop

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"marketplace-system/internal/common/httpx"
	"marketplace-system/internal/common/logger"
	"marketplace-system/internal/connections/rabbitmq"
	"marketplace-system/internal/feed"
	"marketplace-system/internal/microservices/shop/handlers"
	"marketplace-system/internal/microservices/shop/repository"
	"marketplace-system/internal/microservices/shop/service"
)

// Run wires the shop dashboard backend and serves HTTP until ctx is
// canceled.
func Run(ctx context.Context, port int, db *sql.DB, rmq *rabbitmq.Client) error {
	lg := logger.New("shop-service")

	repo := repository.New(db)
	pub := feed.NewPublisher(rmq, "shop-service")
	svc := service.New(repo, pub, lg)
	h := handlers.New(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/shops/{shop_id}/orders", h.ShopHandler.ListOrders)
	mux.HandleFunc("POST /api/v1/shops/{shop_id}/orders/{order_number}/status", h.ShopHandler.UpdateStatus)

	lg.Info("listening", map[string]any{"port": port})
	srv := httpx.New(":"+strconv.Itoa(port), mux)
	return srv.Run(ctx)
}
