package api

import (
	"context"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/khanghh/blogapi/internal/tokens"
	"github.com/khanghh/blogapi/internal/users"
	"github.com/khanghh/blogapi/model"
	"github.com/khanghh/blogapi/params"
)

// Google JSON API style response structures
type APIResponse struct {
	APIVersion string        `json:"apiVersion"`
	Data       any           `json:"data,omitempty"`
	Error      *APIErrorInfo `json:"error,omitempty"`
}

type APIErrorInfo struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Errors  []APIErrorDetail `json:"errors,omitempty"`
}

type APIErrorDetail struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{APIVersion: params.APIVersion, Data: data}
}

func NewErrorResponse(code int, message string, details ...APIErrorDetail) APIResponse {
	return APIResponse{
		APIVersion: params.APIVersion,
		Error: &APIErrorInfo{
			Code:    code,
			Message: message,
			Errors:  details,
		},
	}
}

type UserInfoResponse struct {
	UserID          string     `json:"userId"`
	Username        string     `json:"username"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func newUserInfoResponse(user *model.User) UserInfoResponse {
	return UserInfoResponse{
		UserID:          strconv.FormatUint(user.ID, 10),
		Username:        user.Username,
		Name:            user.Name,
		Email:           user.Email,
		EmailVerifiedAt: user.EmailVerifiedAt,
		CreatedAt:       user.CreatedAt,
	}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"    form:"grant_type"`
	Username     string `json:"username"      form:"username"`
	Password     string `json:"password"      form:"password"`
	Scope        string `json:"scope"         form:"scope"`
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

type oauthCallbackRequest struct {
	Code  string `json:"code"  form:"code"`
	State string `json:"state" form:"state"`
}

type registerRequest struct {
	Username string `json:"username" form:"username"`
	Name     string `json:"name"     form:"name"`
	Email    string `json:"email"    form:"email"`
	Password string `json:"password" form:"password"`
}

type patchUserRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// emailVerification is the encrypted body of an email verification token.
type emailVerification struct {
	Email     string `json:"email"`
	ExpiresAt int64  `json:"exp"`
}

// oauthState is kept in the cache between the login redirect and the callback.
type oauthState struct {
	CreatedAt int64 `json:"createdAt" redis:"created_at"`
}

type TokenService interface {
	IssueToken(ctx context.Context, user *model.User, requestedScope string, client tokens.ClientInfo) (*tokens.TokenEnvelope, error)
	Refresh(ctx context.Context, refreshToken string, client tokens.ClientInfo) (*tokens.TokenEnvelope, error)
	Revoke(ctx context.Context, tokenID string) error
}

type UserService interface {
	GetUserByID(ctx context.Context, userID uint64) (*model.User, error)
	Authenticate(ctx context.Context, identifier string, password string) (*model.User, error)
	CreateUser(ctx context.Context, opts users.CreateUserOptions) (*model.User, error)
	GetOrCreateOAuthUser(ctx context.Context, email string, username string, name string) (*model.User, error)
	MarkEmailVerified(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uint64, opts users.UpdateProfileOptions) (*model.User, error)
}

type KeySetProvider interface {
	JWKS() jose.JSONWebKeySet
}

type Encrypter interface {
	EncryptJSON(val any) (string, error)
	DecryptJSON(token string, val any) error
}
