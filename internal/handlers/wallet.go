package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/venturemart/wallet/internal/apperrors"
	"github.com/venturemart/wallet/internal/handlers/render"
	"github.com/venturemart/wallet/internal/handlers/userctx"
	"github.com/venturemart/wallet/internal/logger"
	"github.com/venturemart/wallet/internal/models"
)

// Fees maps feature names to flat credit prices. The set of chargeable
// features and their prices is deployment configuration, not ledger logic.
type Fees map[string]decimal.Decimal

type walletResponse struct {
	Balance     float64 `json:"balance"`
	TotalEarned float64 `json:"total_earned"`
	TotalSpent  float64 `json:"total_spent"`
}

func toWalletResponse(w models.Wallet) walletResponse {
	balance, _ := w.Balance.Float64()
	earned, _ := w.TotalEarned.Float64()
	spent, _ := w.TotalSpent.Float64()
	return walletResponse{Balance: balance, TotalEarned: earned, TotalSpent: spent}
}

func handleGetWallet(ledger ledgerService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		wallet, err := ledger.GetWallet(r.Context(), user.ID)

		switch {
		case err == nil:
			render.JSON(w, toWalletResponse(wallet))
		case errors.Is(err, apperrors.ErrWalletNotFound):
			// No wallet row yet: the user never moved credits. Reading
			// must not create one, so render the implied zero balances.
			render.JSON(w, walletResponse{})
		default:
			l.Error("Failed to get wallet", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListTransactions(ledger ledgerService, l logger.Logger) http.Handler {
	type transaction struct {
		ID            string    `json:"id"`
		Type          string    `json:"type"`
		Amount        float64   `json:"amount"`
		BalanceBefore float64   `json:"balance_before"`
		BalanceAfter  float64   `json:"balance_after"`
		Description   string    `json:"description"`
		ReferenceType string    `json:"reference_type,omitempty"`
		ReferenceID   string    `json:"reference_id,omitempty"`
		Status        string    `json:"status"`
		CreatedAt     time.Time `json:"created_at"`
	}

	knownTypes := map[string]bool{
		models.TransactionTypeDeposit:       true,
		models.TransactionTypeSpend:         true,
		models.TransactionTypeEarn:          true,
		models.TransactionTypeReferralBonus: true,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		types := r.URL.Query()["type"]
		for _, t := range types {
			if !knownTypes[t] {
				render.ServiceError(w, fmt.Sprintf("Unknown transaction type '%s'", t), http.StatusBadRequest)
				return
			}
		}

		list, err := ledger.ListTransactions(r.Context(), user.ID, types)
		if err != nil {
			l.Error("Failed to list transactions", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		transactions := make([]transaction, 0, len(list))
		for _, t := range list {
			amount, _ := t.Amount.Float64()
			before, _ := t.BalanceBefore.Float64()
			after, _ := t.BalanceAfter.Float64()
			transactions = append(transactions, transaction{
				ID:            t.ID.String(),
				Type:          t.Type,
				Amount:        amount,
				BalanceBefore: before,
				BalanceAfter:  after,
				Description:   t.Description,
				ReferenceType: t.ReferenceType,
				ReferenceID:   t.ReferenceID,
				Status:        t.Status,
				CreatedAt:     t.CreatedAt,
			})
		}
		render.JSON(w, transactions)
	})
}

// handleDeposit converts gateway verified money-in to credits. The route
// layer owns gateway specifics, the ledger only sees the net amount and the
// gateway transaction id as the dedup reference.
func handleDeposit(ledger ledgerService, l logger.Logger) http.Handler {
	type request struct {
		Amount       decimal.Decimal `json:"amount" validate:"required"`
		GatewayTxnID string          `json:"gateway_txn_id" validate:"required,max=150"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		wallet, err := ledger.AddCredits(
			r.Context(),
			user.ID,
			data.Amount,
			"Deposit via payment gateway",
			models.ReferenceTypeDeposit,
			data.GatewayTxnID,
		)

		switch {
		case err == nil:
			render.JSON(w, toWalletResponse(wallet))
		case errors.Is(err, apperrors.ErrAmountNotPositive):
			render.ServiceError(w, "Amount must be positive", http.StatusUnprocessableEntity)
		case errors.Is(err, apperrors.ErrDuplicateReference):
			render.ServiceError(w, "Deposit already recorded", http.StatusConflict)
		default:
			l.Error("Failed to deposit credits", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// handleCharge deducts the flat fee of a feature gated action (project
// creation, job posting and so on)
func handleCharge(ledger ledgerService, fees Fees, l logger.Logger) http.Handler {
	type request struct {
		Feature     string `json:"feature" validate:"required,max=50"`
		ReferenceID string `json:"reference_id" validate:"max=150"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		fee, ok := fees[data.Feature]
		if !ok {
			render.ServiceError(w, fmt.Sprintf("Unknown feature '%s'", data.Feature), http.StatusBadRequest)
			return
		}

		wallet, err := ledger.DeductCredits(
			r.Context(),
			user.ID,
			fee,
			fmt.Sprintf("Fee for %s", data.Feature),
			data.Feature,
			data.ReferenceID,
		)

		switch {
		case err == nil:
			render.JSON(w, toWalletResponse(wallet))
		case errors.Is(err, apperrors.ErrInsufficientCredits):
			render.ServiceError(w, "Insufficient credits", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrDuplicateReference):
			render.ServiceError(w, "Charge already recorded", http.StatusConflict)
		default:
			l.Error("Failed to charge credits", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
