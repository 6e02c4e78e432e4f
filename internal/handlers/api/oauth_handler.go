package api

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/blogapi/internal/audit"
	"github.com/khanghh/blogapi/internal/common"
	"github.com/khanghh/blogapi/internal/oauth"
	"github.com/khanghh/blogapi/internal/store"
	"github.com/khanghh/blogapi/internal/tokens"
	"github.com/khanghh/blogapi/internal/users"
	"github.com/khanghh/blogapi/params"
)

const (
	grantTypePassword     = "password"
	grantTypeRefreshToken = "refresh_token"
	oauthStateKeyPrefix   = "oauth_state:"
	oauthStateExpiration  = 10 * time.Minute
)

func clientInfo(ctx *fiber.Ctx) tokens.ClientInfo {
	return tokens.ClientInfo{
		IP:        ctx.IP(),
		Origin:    ctx.BaseURL(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
}

func sendError(ctx *fiber.Ctx, code int, message string) error {
	return ctx.Status(code).JSON(NewErrorResponse(code, message))
}

type OAuthHandler struct {
	tokenService TokenService
	userService  UserService
	keySet       KeySetProvider
	provider     oauth.OAuthProvider
	stateStore   store.Store[oauthState]
	auditor      *audit.Recorder
}

// PostToken issues a token pair for the password and refresh_token grants.
func (h *OAuthHandler) PostToken(ctx *fiber.Ctx) error {
	var req tokenRequest
	if err := ctx.BodyParser(&req); err != nil {
		return sendError(ctx, fiber.StatusBadRequest, "Malformed request body")
	}

	switch req.GrantType {
	case grantTypePassword:
		return h.passwordGrant(ctx, &req)
	case grantTypeRefreshToken:
		return h.refreshTokenGrant(ctx, &req)
	default:
		return sendError(ctx, fiber.StatusUnauthorized, "Unsupported grant type")
	}
}

func (h *OAuthHandler) passwordGrant(ctx *fiber.Ctx, req *tokenRequest) error {
	if req.Username == "" || req.Password == "" {
		return sendError(ctx, fiber.StatusBadRequest, "Missing username or password")
	}
	client := clientInfo(ctx)
	user, err := h.userService.Authenticate(ctx.Context(), req.Username, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		h.auditor.RecordLoginFailure(ctx.Context(), req.Username, client.IP, client.UserAgent, "invalid credentials")
		return sendError(ctx, fiber.StatusBadRequest, "Invalid username or password")
	} else if err != nil {
		return err
	}

	requestedScope := req.Scope
	if strings.TrimSpace(requestedScope) == "" {
		requestedScope = params.ScopeAll
	}
	envelope, err := h.tokenService.IssueToken(ctx.Context(), user, requestedScope, client)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(envelope)
}

func (h *OAuthHandler) refreshTokenGrant(ctx *fiber.Ctx, req *tokenRequest) error {
	if req.RefreshToken == "" {
		return sendError(ctx, fiber.StatusBadRequest, "Missing refresh token")
	}
	envelope, err := h.tokenService.Refresh(ctx.Context(), req.RefreshToken, clientInfo(ctx))
	if errors.Is(err, tokens.ErrInvalidRefreshToken) {
		return sendError(ctx, fiber.StatusBadRequest, "Invalid refresh token")
	} else if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(envelope)
}

func (h *OAuthHandler) GetJWKS(ctx *fiber.Ctx) error {
	return ctx.JSON(h.keySet.JWKS())
}

// GetLogin returns the provider authorization URL for the third-party login.
func (h *OAuthHandler) GetLogin(ctx *fiber.Ctx) error {
	if h.provider == nil {
		return fiber.ErrNotFound
	}
	state, err := common.GenerateSecret(params.OAuthStateLength)
	if err != nil {
		return err
	}
	if err := h.stateStore.Set(ctx.Context(), state, oauthState{CreatedAt: time.Now().UnixMilli()}, oauthStateExpiration); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{"url": h.provider.GetAuthCodeURL(state)})
}

// PostCallback completes the third-party login. A user signing in for the
// first time gets an account created from the provider profile.
func (h *OAuthHandler) PostCallback(ctx *fiber.Ctx) error {
	if h.provider == nil {
		return fiber.ErrNotFound
	}
	var req oauthCallbackRequest
	if err := ctx.BodyParser(&req); err != nil || req.Code == "" || req.State == "" {
		return sendError(ctx, fiber.StatusBadRequest, "Missing code or state")
	}
	if err := h.stateStore.Delete(ctx.Context(), req.State); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("Failed to consume oauth state", "error", err)
		}
		return sendError(ctx, fiber.StatusBadRequest, "Invalid oauth state")
	}

	oauthToken, err := h.provider.ExchangeToken(ctx.Context(), req.Code)
	if err != nil {
		slog.Debug("OAuth code exchange failed", "provider", h.provider.Name(), "error", err)
		return sendError(ctx, fiber.StatusBadRequest, "Invalid authorization code")
	}
	userInfo, err := h.provider.GetUserInfo(ctx.Context(), oauthToken)
	if err != nil {
		slog.Error("Failed to fetch oauth user info", "provider", h.provider.Name(), "error", err)
		return sendError(ctx, fiber.StatusBadGateway, "Could not fetch user info")
	}

	username := userInfo.PreferredUsername
	if username == "" {
		username = userInfo.Email
	}
	username, _, _ = strings.Cut(username, "@")
	user, err := h.userService.GetOrCreateOAuthUser(ctx.Context(), userInfo.Email, username, userInfo.Name)
	if errors.Is(err, users.ErrUsernameTaken) {
		return sendError(ctx, fiber.StatusConflict, "Username already in use")
	} else if err != nil {
		return err
	}

	envelope, err := h.tokenService.IssueToken(ctx.Context(), user, params.ScopeAll, clientInfo(ctx))
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(envelope)
}

// NewOAuthHandler creates the token endpoint handler. provider may be nil when
// third-party login is not configured.
func NewOAuthHandler(tokenService TokenService, userService UserService, keySet KeySetProvider, provider oauth.OAuthProvider, cacheStorage store.Storage, auditor *audit.Recorder) *OAuthHandler {
	return &OAuthHandler{
		tokenService: tokenService,
		userService:  userService,
		keySet:       keySet,
		provider:     provider,
		stateStore:   store.New[oauthState](cacheStorage, oauthStateKeyPrefix),
		auditor:      auditor,
	}
}
