package middlewares

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/blogapi/internal/scope"
	"github.com/khanghh/blogapi/internal/tokens"
	"github.com/khanghh/blogapi/params"
	"github.com/spf13/cast"
)

const (
	localsClaims = "claims"
	localsUserID = "userID"
)

type TokenVerifier interface {
	VerifyAccessToken(tokenStr string) (*tokens.AccessClaims, error)
}

type TokenValidator interface {
	IsAccessTokenValid(ctx context.Context, claims *tokens.AccessClaims, clientIP string) bool
}

type BearerAuthConfig struct {
	Verifier  TokenVerifier
	Validator TokenValidator
	// BindClientIP passes the request IP to the validator so that tokens are
	// only accepted from the address they were issued to.
	BindClientIP bool
}

func unauthorized(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderWWWAuthenticate, params.TokenTypeBearer)
	return fiber.ErrUnauthorized
}

func bearerToken(ctx *fiber.Ctx) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	tokenType, tokenStr, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(tokenType, params.TokenTypeBearer) {
		return ""
	}
	return strings.TrimSpace(tokenStr)
}

// BearerAuth authenticates requests carrying an access token. The token is
// verified structurally first, then checked against the token store.
func BearerAuth(cfg BearerAuthConfig) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := bearerToken(ctx)
		if tokenStr == "" {
			return unauthorized(ctx)
		}

		claims, err := cfg.Verifier.VerifyAccessToken(tokenStr)
		if err != nil {
			return unauthorized(ctx)
		}

		userID, err := cast.ToUint64E(claims.Subject)
		if err != nil {
			slog.Debug("Access token has a malformed subject", "tokenID", claims.ID, "sub", claims.Subject)
			return unauthorized(ctx)
		}

		clientIP := ""
		if cfg.BindClientIP {
			clientIP = ctx.IP()
		}
		if !cfg.Validator.IsAccessTokenValid(ctx.Context(), claims, clientIP) {
			return unauthorized(ctx)
		}

		ctx.Locals(localsClaims, claims)
		ctx.Locals(localsUserID, userID)
		return ctx.Next()
	}
}

// RequireScopes rejects authenticated requests whose token lacks any of the
// given scopes. It must run after BearerAuth.
func RequireScopes(scopes ...string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		claims := GetClaims(ctx)
		if claims == nil {
			return unauthorized(ctx)
		}
		if !scope.Contains(claims.Scope, scopes...) {
			return fiber.NewError(fiber.StatusForbidden, "Insufficient scope")
		}
		return ctx.Next()
	}
}

func GetClaims(ctx *fiber.Ctx) *tokens.AccessClaims {
	claims, _ := ctx.Locals(localsClaims).(*tokens.AccessClaims)
	return claims
}

func GetUserID(ctx *fiber.Ctx) uint64 {
	userID, _ := ctx.Locals(localsUserID).(uint64)
	return userID
}
