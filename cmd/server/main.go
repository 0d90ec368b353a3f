package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"thepresent-be/internal/config"
	"thepresent-be/internal/db"
	"thepresent-be/internal/httpapi"
	"thepresent-be/internal/logger"
	"thepresent-be/internal/media"
	"thepresent-be/internal/order"
	"thepresent-be/internal/product"
	"thepresent-be/internal/user"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	store, err := media.NewCloudinaryStore(cfg)
	if err != nil {
		logger.L().Fatal("cloudinary init failed", zap.Error(err))
	}

	issuer := user.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	userRepo := user.NewRepository(database)
	userSvc := user.NewService(userRepo, issuer)

	productRepo := product.NewRepository(database)
	productSvc := product.NewService(productRepo, store)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, productRepo)

	api := httpapi.NewServer(cfg, userSvc, productSvc, orderSvc, store, issuer)
	defer api.Close()

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: api.Engine(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.L().Info("server listening", zap.String("port", cfg.AppPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.L().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("shutdown did not finish cleanly", zap.Error(err))
		os.Exit(1)
	}
}
