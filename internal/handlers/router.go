package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	"github.com/venturemart/wallet/internal/handlers/middleware"
	"github.com/venturemart/wallet/internal/logger"
	"github.com/venturemart/wallet/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type RouterConfig struct {
	// Flat prices of feature gated actions
	Fees Fees

	// Reward amount for newly created referrals
	ReferralReward decimal.Decimal

	// Origins the dashboard frontend is served from
	AllowedOrigins []string
}

func NewRouter(
	cfg RouterConfig,
	authService authService,
	ledgerService ledgerService,
	referralService referralService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	apiuser := http.NewServeMux()

	apiuser.Handle("POST /register", handleRegister(authService, logger))
	apiuser.Handle("POST /login", handleLogin(authService, logger))

	apiuser.Handle("GET /wallet", withAuth(handleGetWallet(ledgerService, logger)))
	apiuser.Handle("GET /wallet/transactions", withAuth(handleListTransactions(ledgerService, logger)))
	apiuser.Handle("POST /wallet/deposit", withAuth(handleDeposit(ledgerService, logger)))
	apiuser.Handle("POST /wallet/charge", withAuth(handleCharge(ledgerService, cfg.Fees, logger)))

	apiuser.Handle("POST /referrals", withAuth(handleCreateReferral(referralService, cfg.ReferralReward, logger)))
	apiuser.Handle("GET /referrals", withAuth(handleListReferrals(referralService, logger)))
	apiuser.Handle("POST /referrals/{id}/complete", withAuth(handleCompleteReferral(referralService, logger)))
	apiuser.Handle("POST /referrals/{id}/credit", withAuth(handleCreditReferral(referralService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		corsMiddleware.Handler,
	)

	return handler
}

type authService interface {
	// Register user with username and password
	// Has to return apperrors.ErrUserAlreadyExists if user already exists
	Register(ctx context.Context, username string, password string) (models.User, string, error)

	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound on bad credentials
	Login(ctx context.Context, username string, password string) (models.User, string, error)

	// Get request and return user if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

type ledgerService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, types []string) ([]models.Transaction, error)
	AddCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, referenceType string, referenceID string) (models.Wallet, error)
	DeductCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, referenceType string, referenceID string) (models.Wallet, error)
}

type referralService interface {
	CreateReferral(ctx context.Context, referrerID uuid.UUID, referredEmail string, reward decimal.Decimal) (models.Referral, error)
	ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error)
	MarkCompleted(ctx context.Context, referralID uuid.UUID) (models.Referral, error)
	CreditReferral(ctx context.Context, referralID uuid.UUID) (models.Referral, error)
}
