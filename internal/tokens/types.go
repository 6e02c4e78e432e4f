package tokens

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/blogapi/model"
)

// TokenEnvelope is the response body of every token grant.
type TokenEnvelope struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// AccessClaims is the payload of a signed access token.
type AccessClaims struct {
	Username string `json:"username"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// refreshPayload is the encrypted body of a refresh token. It only references
// the access token record it can renew.
type refreshPayload struct {
	ID      string `json:"jti"`
	Subject string `json:"sub"`
}

// refreshMarker remembers a redeemed refresh token to detect reuse.
type refreshMarker struct {
	AccessTokenID string `json:"accessTokenID" redis:"access_token_id"`
	ReplacedBy    string `json:"replacedBy"    redis:"replaced_by"`
	RedeemedAt    int64  `json:"redeemedAt"    redis:"redeemed_at"`
}

// ClientInfo describes the request a token is issued for.
type ClientInfo struct {
	IP        string
	Origin    string // scheme://host of the request, used as issuer and audience
	UserAgent string
}

type Signer interface {
	Sign(claims jwt.Claims) (string, error)
	Verify(tokenStr string, claims jwt.Claims) error
}

type Encrypter interface {
	EncryptJSON(val any) (string, error)
	DecryptJSON(token string, val any) error
}

type ScopePolicy interface {
	Effective(requested string, verified bool) string
}

type UserLookup interface {
	GetUserByIDFresh(ctx context.Context, userID uint64) (*model.User, error)
}

type AccessTokenRepository interface {
	Transaction(ctx context.Context, fn func(repo AccessTokenRepository) error) error
	Create(ctx context.Context, token *model.AccessToken) error
	FindByID(ctx context.Context, tokenID string) (*model.AccessToken, error)
	FindByIDFresh(ctx context.Context, tokenID string) (*model.AccessToken, error)
	Revoke(ctx context.Context, tokenID string, revokedAt time.Time) (int64, error)
	Delete(ctx context.Context, tokenID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
