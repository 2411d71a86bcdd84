package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venturemart/wallet/internal/apperrors"
	"github.com/venturemart/wallet/internal/handlers/render"
	"github.com/venturemart/wallet/internal/handlers/userctx"
	"github.com/venturemart/wallet/internal/logger"
	"github.com/venturemart/wallet/internal/models"
)

type referralResponse struct {
	ID            string    `json:"id"`
	ReferredEmail string    `json:"referred_email"`
	Status        string    `json:"status"`
	RewardAmount  float64   `json:"reward_amount"`
	CreatedAt     time.Time `json:"created_at"`
}

func toReferralResponse(ref models.Referral) referralResponse {
	reward, _ := ref.RewardAmount.Float64()
	return referralResponse{
		ID:            ref.ID.String(),
		ReferredEmail: ref.ReferredEmail,
		Status:        ref.Status,
		RewardAmount:  reward,
		CreatedAt:     ref.CreatedAt,
	}
}

func handleCreateReferral(referrals referralService, defaultReward decimal.Decimal, l logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email,max=254"`
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

		referral, err := referrals.CreateReferral(r.Context(), user.ID, data.Email, defaultReward)
		if err != nil {
			l.Error("Failed to create referral", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, toReferralResponse(referral))
	})
}

func handleListReferrals(referrals referralService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		list, err := referrals.ListReferrals(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to list referrals", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]referralResponse, 0, len(list))
		for _, ref := range list {
			response = append(response, toReferralResponse(ref))
		}
		render.JSON(w, response)
	})
}

// handleCompleteReferral is the conversion callback: the referred contact
// became a real user. Retries are no-ops.
func handleCompleteReferral(referrals referralService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referralID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid referral id", http.StatusBadRequest)
			return
		}

		referral, err := referrals.MarkCompleted(r.Context(), referralID)

		switch {
		case err == nil:
			render.JSON(w, toReferralResponse(referral))
		case errors.Is(err, apperrors.ErrReferralNotFound):
			render.ServiceError(w, "Referral not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrReferralAlreadyCredited):
			render.ServiceError(w, "Referral already credited", http.StatusConflict)
		default:
			l.Error("Failed to complete referral", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// handleCreditReferral pays the reward out to the referrer's wallet
func handleCreditReferral(referrals referralService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referralID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid referral id", http.StatusBadRequest)
			return
		}

		referral, err := referrals.CreditReferral(r.Context(), referralID)

		switch {
		case err == nil:
			render.JSON(w, toReferralResponse(referral))
		case errors.Is(err, apperrors.ErrReferralNotFound):
			render.ServiceError(w, "Referral not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrReferralNotCompleted):
			render.ServiceError(w, "Referral is not completed yet", http.StatusConflict)
		case errors.Is(err, apperrors.ErrReferralAlreadyCredited):
			render.ServiceError(w, "Referral already credited", http.StatusConflict)
		default:
			l.Error("Failed to credit referral", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
