package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/blogapi/internal/scope"
	"github.com/khanghh/blogapi/internal/tokens"
	"github.com/khanghh/blogapi/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]*tokens.AccessClaims

func (f fakeVerifier) VerifyAccessToken(tokenStr string) (*tokens.AccessClaims, error) {
	claims, ok := f[tokenStr]
	if !ok {
		return nil, tokens.ErrTokenInvalid
	}
	return claims, nil
}

type fakeValidator struct {
	valid    bool
	clientIP string
	calls    int
}

func (f *fakeValidator) IsAccessTokenValid(ctx context.Context, claims *tokens.AccessClaims, clientIP string) bool {
	f.calls++
	f.clientIP = clientIP
	return f.valid
}

func newClaims(sub string, scopes string) *tokens.AccessClaims {
	return &tokens.AccessClaims{
		Username:         "alice",
		Scope:            scopes,
		RegisteredClaims: jwt.RegisteredClaims{ID: "tok-1", Subject: sub},
	}
}

func newTestApp(cfg BearerAuthConfig, handlers ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	chain := append([]fiber.Handler{BearerAuth(cfg)}, handlers...)
	chain = append(chain, func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"userID":   GetUserID(ctx),
			"username": GetClaims(ctx).Username,
		})
	})
	app.Get("/protected", chain...)
	return app
}

func doRequest(t *testing.T, app *fiber.App, authorization string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errorResponse {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out errorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestBearerAuth_Accepts(t *testing.T) {
	validator := &fakeValidator{valid: true}
	app := newTestApp(BearerAuthConfig{
		Verifier:     fakeVerifier{"good": newClaims("1001", "write:profile")},
		Validator:    validator,
		BindClientIP: true,
	})

	resp := doRequest(t, app, "Bearer good")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		UserID   uint64 `json:"userID"`
		Username string `json:"username"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 1001, body.UserID)
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, 1, validator.calls)
	assert.Equal(t, "0.0.0.0", validator.clientIP)
}

func TestBearerAuth_SkipsIPWhenUnbound(t *testing.T) {
	validator := &fakeValidator{valid: true}
	app := newTestApp(BearerAuthConfig{
		Verifier:  fakeVerifier{"good": newClaims("1001", "")},
		Validator: validator,
	})

	resp := doRequest(t, app, "bearer good")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", validator.clientIP)
}

func TestBearerAuth_Rejects(t *testing.T) {
	verifier := fakeVerifier{
		"good":   newClaims("1001", ""),
		"badsub": newClaims("not-a-number", ""),
	}

	tests := []struct {
		name          string
		authorization string
		valid         bool
	}{
		{"missing header", "", true},
		{"wrong scheme", "Basic good", true},
		{"empty token", "Bearer ", true},
		{"structurally invalid", "Bearer forged", true},
		{"malformed subject", "Bearer badsub", true},
		{"revoked in store", "Bearer good", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(BearerAuthConfig{Verifier: verifier, Validator: &fakeValidator{valid: tt.valid}})
			resp := doRequest(t, app, tt.authorization)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, params.TokenTypeBearer, resp.Header.Get(fiber.HeaderWWWAuthenticate))

			body := decodeError(t, resp)
			assert.Equal(t, params.APIVersion, body.APIVersion)
			assert.Equal(t, http.StatusUnauthorized, body.Error.Code)
			assert.Equal(t, "Unauthorized", body.Error.Message)
		})
	}
}

func TestRequireScopes(t *testing.T) {
	verifier := fakeVerifier{
		"writer": newClaims("1", "write:profile write:posts"),
		"reader": newClaims("2", "write:profile"),
	}
	app := newTestApp(
		BearerAuthConfig{Verifier: verifier, Validator: &fakeValidator{valid: true}},
		RequireScopes(scope.WritePosts),
	)

	resp := doRequest(t, app, "Bearer writer")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, "Bearer reader")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Insufficient scope", decodeError(t, resp).Error.Message)
}

func TestRequireScopes_WithoutAuth(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/protected", RequireScopes(scope.WritePosts), func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(http.StatusOK)
	})
	resp := doRequest(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestErrorHandler_HidesServerErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/protected", func(ctx *fiber.Ctx) error {
		return errors.New("dial tcp 10.0.0.1:3306: connection refused")
	})

	resp := doRequest(t, app, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "Internal Server Error", body.Error.Message)
}
