package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"bookings/alerts"
	"bookings/db"
	"bookings/db/bookings"
	"bookings/db/transactions"
	"bookings/http"
	"bookings/reconcile"
	"bookings/saga"
)

type Service struct {
	db         *sqlx.DB
	httpServer *http.Server
	reconciler *reconcile.Reconciler
}

func New(
	addr string,
	dbConn *sqlx.DB,
	redisClient *redis.Client,
	paymentGateway saga.PaymentGateway,
	inventoryProvider saga.InventoryProvider,
	reconcileInterval time.Duration,
	stuckAfter time.Duration,
) Service {
	transactionsRepo := transactions.NewPostgresRepository(dbConn)
	bookingsRepo := bookings.NewPostgresRepository(dbConn)

	watermillLogger := watermill.NewStdLogger(false, false)
	alertPublisher := alerts.NewRedisPublisher(redisClient, watermillLogger)
	alertEmitter := alerts.NewEmitter(alertPublisher)

	orchestrator := saga.NewOrchestrator(
		transactionsRepo,
		bookingsRepo,
		paymentGateway,
		inventoryProvider,
		alertEmitter,
	)

	httpServer := http.NewServer(addr, orchestrator, bookingsRepo)

	reconciler := reconcile.New(
		transactionsRepo,
		paymentGateway,
		orchestrator,
		alertEmitter,
		reconcileInterval,
		stuckAfter,
	)

	return Service{
		db:         dbConn,
		httpServer: httpServer,
		reconciler: reconciler,
	}
}

func (s Service) Run(ctx context.Context) error {
	if err := db.InitializeDatabaseSchema(s.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.reconciler.Run(ctx)
	})

	g.Go(func() error {
		return s.httpServer.Run(ctx)
	})

	return g.Wait()
}
