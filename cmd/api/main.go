package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"qkart-backend/internal/config"
	"qkart-backend/internal/db"
	"qkart-backend/internal/events"
	"qkart-backend/internal/httpserver"
	cartrepo "qkart-backend/internal/repository/cart"
	categoryrepo "qkart-backend/internal/repository/category"
	productrepo "qkart-backend/internal/repository/product"
	userrepo "qkart-backend/internal/repository/user"
	authsvc "qkart-backend/internal/service/auth"
	cartsvc "qkart-backend/internal/service/cart"
	categorysvc "qkart-backend/internal/service/category"
	productsvc "qkart-backend/internal/service/product"
	usersvc "qkart-backend/internal/service/user"

	"github.com/shopspring/decimal"
)

func main() {
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.RequireAuth(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	// Money is rendered as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns, logger)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	var publisher events.Publisher = events.Nop{}
	if cfg.KafkaEnabled() {
		publisher = events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Printf("publishing cart events to topic %s", cfg.KafkaTopic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Printf("close event publisher: %v", err)
		}
	}()

	userRepo := userrepo.NewPostgres(dbpool, logger)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool, logger)

	userService := usersvc.New(userRepo, cfg.DefaultWalletMoney, logger)
	authService, err := authsvc.New(userService, cfg.JWTSecret, cfg.AccessTokenTTL, logger)
	if err != nil {
		logger.Fatalf("init auth: %v", err)
	}
	productService := productsvc.New(productRepo)
	categoryService := categorysvc.New(categoryrepo.NewPostgres(dbpool, logger))
	cartService := cartsvc.New(cartsvc.Deps{
		Carts:    cartRepo,
		Products: productRepo,
		Users:    userRepo,
		Tx:       db.NewTxRunner(dbpool),
		Events:   publisher,
		Logger:   logger,
	}, cfg.DefaultPaymentOption)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		AuthSvc:     authService,
		UserSvc:     userService,
		ProductSvc:  productService,
		CategorySvc: categoryService,
		CartSvc:     cartService,
	}, cfg.CORSAllowedOrigins)
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
