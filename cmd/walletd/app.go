package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/venturemart/wallet/internal/db"
	"github.com/venturemart/wallet/internal/handlers"
	"github.com/venturemart/wallet/internal/logger"
	"github.com/venturemart/wallet/internal/repository/postgres"
	"github.com/venturemart/wallet/internal/service/auth"
	"github.com/venturemart/wallet/internal/service/referral"
	"github.com/venturemart/wallet/internal/service/wallet"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	fees, err := c.Fees()
	if err != nil {
		return nil, fmt.Errorf("error while parsing fees. Err: %w", err)
	}

	referralReward, err := c.ReferralRewardAmount()
	if err != nil {
		return nil, fmt.Errorf("error while parsing referral reward. Err: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	authService, err := auth.NewService(auth.Config{SecretKey: c.SecretKey}, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	ledgerService := wallet.NewService(storage)
	referralService := referral.NewService(storage)

	mux := handlers.NewRouter(
		handlers.RouterConfig{
			Fees:           fees,
			ReferralReward: referralReward,
			AllowedOrigins: c.Origins(),
		},
		authService,
		ledgerService,
		referralService,
		l,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     l,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
