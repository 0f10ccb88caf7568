package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "warehouse-ledger/internal/adapters/web"
	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	locationService := core.NewLocationService(pool)
	stockService := core.NewStockService(pool)
	movementService := core.NewMovementService(pool)
	deliveryService := core.NewDeliveryService(pool)
	reportingService := core.NewReportingService(pool)

	svc := app.NewAppService(pool, locationService, stockService, movementService,
		deliveryService, reportingService)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
