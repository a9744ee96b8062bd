package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"    // optional .env loading for local development
	"github.com/labstack/echo/v4" // Echo web framework
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/essenza/room-booking/internal/booking"
	"github.com/essenza/room-booking/internal/config"
	"github.com/essenza/room-booking/internal/database"
	"github.com/essenza/room-booking/internal/handler"
	"github.com/essenza/room-booking/internal/logger"
	"github.com/essenza/room-booking/internal/middleware"
	"github.com/essenza/room-booking/internal/payment"
	"github.com/essenza/room-booking/internal/queue"
	"github.com/essenza/room-booking/internal/reconciler"
	"github.com/essenza/room-booking/internal/repository"
	"github.com/essenza/room-booking/internal/router"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine in production

	cfg := config.Load()
	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	// The Stripe client is configured process-wide.
	stripe.Key = cfg.StripeSecretKey

	bookings := repository.NewBookingRepo(db)
	rooms := repository.NewRoomRepo(db)
	payments := &payment.StripeCheckout{AppURL: cfg.PublicAppURL}
	publisher := queue.NewPublisher("")
	svc := booking.NewService(rooms, bookings, payments, publisher, cfg.Currency, zlog)

	// Background sweep releasing pending bookings that never received a
	// payment session reference.
	sweep := reconciler.New(
		bookings,
		time.Duration(cfg.PendingTTLMin)*time.Minute,
		time.Duration(cfg.SweepIntervalMin)*time.Minute,
		zlog,
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweep.Run(ctx)

	// Redis backs the response cache and the rate limiter; when it is down
	// both degrade to no-ops.
	rdb := config.NewRedisClient()
	if rdb == nil {
		zlog.Warn("redis unavailable; response cache and rate limiting disabled")
	}

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	bh := handler.NewBookingHandler(svc, zlog)
	rh := handler.NewRoomHandler(rooms, zlog)

	router.RegisterRoutes(e)
	router.RegisterPublic(e, rh, bh, cacheMW)
	router.RegisterBooking(e, bh, cfg.JWTSecret)

	addr := ":" + cfg.Port
	zlog.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
