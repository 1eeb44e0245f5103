package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bookings/config"
	"bookings/gateway"
	"bookings/service"
	"bookings/tracing"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	if cfg.JaegerEndpoint != "" {
		tp := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logrus.WithError(err).Error("failed to shut down tracer provider")
			}
		}()
	}

	dbConn, err := sqlx.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logrus.WithError(err).Fatal("could not connect to postgres")
	}
	defer dbConn.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	paymentClient := gateway.NewPaymentClient(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey, cfg.GatewayTimeout)
	providerClient := gateway.NewProviderClient(cfg.ProviderURL, cfg.GatewayTimeout)

	svc := service.New(
		cfg.HTTPAddr,
		dbConn,
		redisClient,
		paymentClient,
		providerClient,
		cfg.ReconcileInterval,
		cfg.StuckAfter,
	)

	if err := svc.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("service stopped")
	}
}
