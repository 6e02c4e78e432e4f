package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/blogapi/internal/middlewares"
	"github.com/khanghh/blogapi/internal/tokens"
	"github.com/khanghh/blogapi/internal/users"
	"github.com/khanghh/blogapi/params"
)

type AuthHandler struct {
	tokenService TokenService
	userService  UserService
	encrypter    Encrypter
}

func (h *AuthHandler) PostRegister(ctx *fiber.Ctx) error {
	var req registerRequest
	if err := ctx.BodyParser(&req); err != nil {
		return sendError(ctx, fiber.StatusBadRequest, "Malformed request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return sendError(ctx, fiber.StatusBadRequest, "Username, email and password are required")
	}

	user, err := h.userService.CreateUser(ctx.Context(), users.CreateUserOptions{
		Username: req.Username,
		Name:     strings.TrimSpace(req.Name),
		Email:    req.Email,
		Password: req.Password,
	})
	if errors.Is(err, users.ErrInvalidUsername) {
		return sendError(ctx, fiber.StatusBadRequest, "Username must not contain '@'")
	} else if errors.Is(err, users.ErrUsernameTaken) {
		return sendError(ctx, fiber.StatusConflict, "Username already in use")
	} else if errors.Is(err, users.ErrEmailRegistered) {
		return sendError(ctx, fiber.StatusConflict, "Email already in use")
	} else if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newUserInfoResponse(user)))
}

// PostEmailVerify creates an email verification token for the authenticated
// user. Delivering it is up to the client.
func (h *AuthHandler) PostEmailVerify(ctx *fiber.Ctx) error {
	user, err := h.userService.GetUserByID(ctx.Context(), middlewares.GetUserID(ctx))
	if errors.Is(err, users.ErrUserNotFound) {
		return sendError(ctx, fiber.StatusNotFound, "User not found")
	} else if err != nil {
		return err
	}
	if user.IsEmailVerified() {
		return sendError(ctx, fiber.StatusBadRequest, "Email already verified")
	}

	token, err := h.encrypter.EncryptJSON(emailVerification{
		Email:     user.Email,
		ExpiresAt: time.Now().Add(params.EmailVerifyTokenLifetime).Unix(),
	})
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token})
}

func (h *AuthHandler) GetEmailVerify(ctx *fiber.Ctx) error {
	var payload emailVerification
	if err := h.encrypter.DecryptJSON(ctx.Query("token"), &payload); err != nil || payload.Email == "" {
		return sendError(ctx, fiber.StatusBadRequest, "Invalid verification token")
	}
	if time.Now().Unix() >= payload.ExpiresAt {
		return sendError(ctx, fiber.StatusBadRequest, "Verification token expired")
	}

	_, err := h.userService.MarkEmailVerified(ctx.Context(), payload.Email)
	if errors.Is(err, users.ErrUserNotFound) {
		return sendError(ctx, fiber.StatusNotFound, "User not found")
	} else if errors.Is(err, users.ErrEmailAlreadyVerified) {
		return sendError(ctx, fiber.StatusBadRequest, "Email already verified")
	} else if err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) GetUser(ctx *fiber.Ctx) error {
	user, err := h.userService.GetUserByID(ctx.Context(), middlewares.GetUserID(ctx))
	if errors.Is(err, users.ErrUserNotFound) {
		return sendError(ctx, fiber.StatusNotFound, "User not found")
	} else if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(newUserInfoResponse(user)))
}

func (h *AuthHandler) PatchUser(ctx *fiber.Ctx) error {
	var req patchUserRequest
	if err := ctx.BodyParser(&req); err != nil {
		return sendError(ctx, fiber.StatusBadRequest, "Malformed request body")
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if req.Password != nil && *req.Password == "" {
		return sendError(ctx, fiber.StatusBadRequest, "Password must not be empty")
	}

	user, err := h.userService.UpdateProfile(ctx.Context(), middlewares.GetUserID(ctx), users.UpdateProfileOptions{
		Name:     req.Name,
		Password: req.Password,
	})
	if errors.Is(err, users.ErrUserNotFound) {
		return sendError(ctx, fiber.StatusNotFound, "User not found")
	} else if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(newUserInfoResponse(user)))
}

// PostLogout revokes the access token used for the request together with its
// refresh token.
func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	claims := middlewares.GetClaims(ctx)
	if claims == nil {
		return fiber.ErrUnauthorized
	}
	err := h.tokenService.Revoke(ctx.Context(), claims.ID)
	if err != nil && !errors.Is(err, tokens.ErrTokenNotFound) {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func NewAuthHandler(tokenService TokenService, userService UserService, encrypter Encrypter) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		userService:  userService,
		encrypter:    encrypter,
	}
}
