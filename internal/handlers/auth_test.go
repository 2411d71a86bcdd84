package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venturemart/wallet/internal/testutil"
)

func Test_AuthHandlers(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("register ok", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			resp, body := doJSON(t, http.MethodPost, env.url+"/register", "", `{"username": "founder", "password": "StrongEnoughPassword"}`)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var data struct {
				Token string `json:"token"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &data))
			require.NotEmpty(t, data.Token, "register should hand out an access token")
		})
	})

	t.Run("register fail if user exists", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			env.register(t, "founder")

			resp, body := doJSON(t, http.MethodPost, env.url+"/register", "", `{"username": "founder", "password": "StrongEnoughPassword"}`)

			require.Equal(t, http.StatusConflict, resp.StatusCode)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "User already exists"
				}`, body)
		})
	})

	t.Run("register fail on short password", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			resp, body := doJSON(t, http.MethodPost, env.url+"/register", "", `{"username": "founder", "password": "short"}`)

			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.JSONEq(t, `
				{
					"error": "validation_failed",
					"message": "Request validation failed",
					"fields": {"password": "Value is too short (minimum 8)"}
				}`, body)
		})
	})

	t.Run("login ok", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			env.register(t, "founder")

			resp, body := doJSON(t, http.MethodPost, env.url+"/login", "", `{"username": "founder", "password": "StrongEnoughPassword"}`)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var data struct {
				Token string `json:"token"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &data))
			require.NotEmpty(t, data.Token)
		})
	})

	t.Run("login failed", func(t *testing.T) {
		startTestServer(pg, t, func(env testEnv) {
			env.register(t, "founder")

			resp, body := doJSON(t, http.MethodPost, env.url+"/login", "", `{"username": "founder", "password": "WrongPassword"}`)

			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Invalid username or password"
				}`, body)
		})
	})
}
