package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"kasirpos/m/internal/api"
	"kasirpos/m/internal/catalog"
	"kasirpos/m/internal/config"
	"kasirpos/m/internal/customer"
	"kasirpos/m/internal/database"
	"kasirpos/m/internal/metrics"
	"kasirpos/m/internal/migrations"
	"kasirpos/m/internal/promo"
	"kasirpos/m/internal/sale"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	posMetrics := metrics.New(registry)

	cat := catalog.New(db)
	promos := promo.New(db, logger)

	var customers sale.CustomerVerifier
	if cfg.CustomerServiceURL != "" {
		customers = customer.New(cfg.CustomerServiceURL)
	}

	sales := sale.New(db, cat, promos, customers, posMetrics, logger)
	handler := api.New(db, sales, cat, promos, cfg.Secret, logger, registry)

	logger.Info("KasirPOS server starting", zap.String("port", cfg.HTTPPort))
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
