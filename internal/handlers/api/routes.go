package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/blogapi/internal/middlewares"
	"github.com/khanghh/blogapi/internal/scope"
)

func SetupRoutes(router fiber.Router, oauthHandler *OAuthHandler, authHandler *AuthHandler, bearerAuth fiber.Handler) {
	router.Get("/.well-known/jwks.json", oauthHandler.GetJWKS)
	router.Post("/oauth/token", oauthHandler.PostToken)
	router.Get("/oauth/login", oauthHandler.GetLogin)
	router.Post("/oauth/callback", oauthHandler.PostCallback)

	router.Post("/auth/register", authHandler.PostRegister)
	router.Get("/auth/email/verify", authHandler.GetEmailVerify)
	router.Post("/auth/email/verify", bearerAuth, authHandler.PostEmailVerify)
	router.Get("/auth/user", bearerAuth, authHandler.GetUser)
	router.Patch("/auth/user", bearerAuth, middlewares.RequireScopes(scope.WriteProfile), authHandler.PatchUser)
	router.Post("/auth/logout", bearerAuth, authHandler.PostLogout)
}
