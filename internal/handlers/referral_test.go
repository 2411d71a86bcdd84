package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venturemart/wallet/internal/testutil"
)

func Test_ReferralHandlers(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	type referralData struct {
		ID            string  `json:"id"`
		ReferredEmail string  `json:"referred_email"`
		Status        string  `json:"status"`
		RewardAmount  float64 `json:"reward_amount"`
	}

	createReferral := func(t *testing.T, env testEnv, token string) referralData {
		t.Helper()

		resp, body := doJSON(t, http.MethodPost, env.url+"/referrals", token, `{"email": "friend@example.com"}`)
		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

		var data referralData
		require.NoError(t, json.Unmarshal([]byte(body), &data))
		return data
	}

	t.Run("create ok with configured reward", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			token := env.register(t, "founder")

			data := createReferral(t, env, token)

			require.Equal(t, "friend@example.com", data.ReferredEmail)
			require.Equal(t, "pending", data.Status)
			require.Equal(t, 10.0, data.RewardAmount)
		})
	})

	t.Run("create fail on bad email", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			token := env.register(t, "founder")

			resp, body := doJSON(t, http.MethodPost, env.url+"/referrals", token, `{"email": "not-an-email"}`)

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.JSONEq(t, `
				{
					"error": "validation_failed",
					"message": "Request validation failed",
					"fields": {"email": "Must be a valid email address"}
				}`, body)
		})
	})

	t.Run("list shows own referrals only", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			token := env.register(t, "founder")
			other := env.register(t, "other")
			createReferral(t, env, token)

			resp, body := doJSON(t, http.MethodGet, env.url+"/referrals", other, "")

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.JSONEq(t, `[]`, body)

			resp, body = doJSON(t, http.MethodGet, env.url+"/referrals", token, "")

			require.Equal(t, http.StatusOK, resp.StatusCode)

			var list []referralData
			require.NoError(t, json.Unmarshal([]byte(body), &list))
			require.Len(t, list, 1)
		})
	})

	t.Run("complete then credit pays the referrer", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			token := env.register(t, "founder")
			created := createReferral(t, env, token)

			resp, body := doJSON(t, http.MethodPost, env.url+"/referrals/"+created.ID+"/complete", token, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			resp, body = doJSON(t, http.MethodPost, env.url+"/referrals/"+created.ID+"/credit", token, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var data referralData
			require.NoError(t, json.Unmarshal([]byte(body), &data))
			require.Equal(t, "credited", data.Status)

			resp, body = doJSON(t, http.MethodGet, env.url+"/wallet", token, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.JSONEq(t, `
				{
					"balance": 10,
					"total_earned": 10,
					"total_spent": 0
				}`, body, "referral reward should land on the balance and count as earned")
		})
	})

	t.Run("credit before completion rejected", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			token := env.register(t, "founder")
			created := createReferral(t, env, token)

			resp, body := doJSON(t, http.MethodPost, env.url+"/referrals/"+created.ID+"/credit", token, "")

			require.Equal(t, http.StatusConflict, resp.StatusCode)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Referral is not completed yet"
				}`, body)
		})
	})

	t.Run("double credit rejected", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			token := env.register(t, "founder")
			created := createReferral(t, env, token)

			_, _ = doJSON(t, http.MethodPost, env.url+"/referrals/"+created.ID+"/complete", token, "")
			_, _ = doJSON(t, http.MethodPost, env.url+"/referrals/"+created.ID+"/credit", token, "")
			resp, body := doJSON(t, http.MethodPost, env.url+"/referrals/"+created.ID+"/credit", token, "")

			require.Equal(t, http.StatusConflict, resp.StatusCode)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Referral already credited"
				}`, body)
		})
	})

	t.Run("unknown referral id", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			token := env.register(t, "founder")

			resp, _ := doJSON(t, http.MethodPost, env.url+"/referrals/7b9e7b66-94a4-4561-b59f-69299b6a9533/complete", token, "")

			require.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	})

	t.Run("malformed referral id", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			token := env.register(t, "founder")

			resp, body := doJSON(t, http.MethodPost, env.url+"/referrals/not-a-uuid/credit", token, "")

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid referral id"
				}`, body)
		})
	})
}
