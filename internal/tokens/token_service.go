package tokens

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/khanghh/blogapi/internal/audit"
	"github.com/khanghh/blogapi/internal/store"
	"github.com/khanghh/blogapi/internal/users"
	"github.com/khanghh/blogapi/model"
	"github.com/khanghh/blogapi/params"
	"gorm.io/gorm"
)

type Options struct {
	AccessTokenTTL time.Duration
	Issuer         string // fixed issuer and audience; the request origin is used when empty
}

// TokenService issues, validates, refreshes and revokes bearer token pairs.
// All state lives in the access token store.
type TokenService struct {
	signer      Signer
	encrypter   Encrypter
	policy      ScopePolicy
	users       UserLookup
	tokenRepo   AccessTokenRepository
	markerStore store.Store[refreshMarker]
	auditor     *audit.Recorder
	ttl         time.Duration
	issuer      string
	now         func() time.Time
}

func (s *TokenService) issuerFor(client ClientInfo) string {
	if s.issuer != "" {
		return s.issuer
	}
	return client.Origin
}

// issue builds and persists a new token pair for user within repo. The user
// must already reflect the current verification state.
func (s *TokenService) issue(ctx context.Context, repo AccessTokenRepository, user *model.User, requestedScope string, client ClientInfo) (*TokenEnvelope, *model.AccessToken, error) {
	effectiveScope := s.policy.Effective(requestedScope, user.IsEmailVerified())

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	issuer := s.issuerFor(client)
	claims := AccessClaims{
		Username: user.Username,
		Scope:    effectiveScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{issuer},
			Subject:   strconv.FormatUint(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	accessToken, err := s.signer.Sign(claims)
	if err != nil {
		return nil, nil, err
	}
	refreshToken, err := s.encrypter.EncryptJSON(refreshPayload{
		ID:      uuid.NewString(),
		Subject: claims.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	record := model.AccessToken{
		ID:        claims.ID,
		UserID:    user.ID,
		Scope:     effectiveScope,
		ExpiresAt: expiresAt,
		UserIP:    client.IP,
	}
	if err := repo.Create(ctx, &record); err != nil {
		slog.Error("Failed to persist access token", "tokenID", record.ID, "userID", user.ID, "error", err)
		return nil, nil, storeError(err)
	}

	return &TokenEnvelope{
		TokenType:    params.TokenTypeBearer,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.ttl / time.Second),
		Scope:        effectiveScope,
	}, &record, nil
}

func (s *TokenService) recordIssued(ctx context.Context, user *model.User, record *model.AccessToken, client ClientInfo) {
	s.auditor.RecordTokenEvent(ctx, audit.TokenEventRecord{
		EventType: audit.EventTypeTokenIssued,
		UserID:    user.ID,
		Username:  user.Username,
		TokenID:   record.ID,
		Scope:     record.Scope,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	})
}

// IssueToken grants a new token pair to user for the requested scope. The
// user's email verification state is re-read from the primary database.
func (s *TokenService) IssueToken(ctx context.Context, user *model.User, requestedScope string, client ClientInfo) (*TokenEnvelope, error) {
	fresh, err := s.users.GetUserByIDFresh(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	envelope, record, err := s.issue(ctx, s.tokenRepo, fresh, requestedScope, client)
	if err != nil {
		return nil, err
	}
	s.recordIssued(ctx, fresh, record, client)
	return envelope, nil
}

// VerifyAccessToken checks the signature and time claims of a raw access token
// and returns its claims. It does not consult the store.
func (s *TokenService) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := s.signer.Verify(tokenStr, &claims); err != nil {
		return nil, ErrTokenInvalid
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}

// IsAccessTokenValid reports whether a structurally verified access token is
// still usable. clientIP is compared with the issuing IP only when both are
// known.
func (s *TokenService) IsAccessTokenValid(ctx context.Context, claims *AccessClaims, clientIP string) bool {
	if claims == nil || claims.ID == "" {
		return false
	}
	record, err := s.tokenRepo.FindByID(ctx, claims.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Error("Failed to load access token", "tokenID", claims.ID, "error", err)
		}
		return false
	}
	if record.IsRevoked() {
		return false
	}
	if record.IsExpiredAt(s.now()) {
		return false
	}
	if clientIP != "" && record.UserIP != "" && clientIP != record.UserIP {
		slog.Debug("Access token used from a different IP", "tokenID", record.ID, "issuedTo", record.UserIP, "clientIP", clientIP)
		return false
	}
	return true
}

// Refresh redeems a refresh token for a new pair carrying the original scope.
// The old record is revoked with a conditional update in the same transaction
// that persists the new one, so a refresh token can be redeemed only once.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*TokenEnvelope, error) {
	var payload refreshPayload
	if err := s.encrypter.DecryptJSON(refreshToken, &payload); err != nil || payload.Subject == "" {
		return nil, ErrInvalidRefreshToken
	}

	record, err := s.tokenRepo.FindByIDFresh(ctx, payload.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidRefreshToken
	} else if err != nil {
		return nil, storeError(err)
	}

	now := s.now()
	if record.IsRevoked() {
		s.reportReuse(ctx, payload, record, client)
		return nil, ErrInvalidRefreshToken
	}
	if record.IsExpiredAt(now) {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUserByIDFresh(ctx, record.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, ErrInvalidRefreshToken
	} else if err != nil {
		return nil, err
	}

	var (
		envelope  *TokenEnvelope
		newRecord *model.AccessToken
	)
	err = s.tokenRepo.Transaction(ctx, func(repo AccessTokenRepository) error {
		revoked, err := repo.Revoke(ctx, record.ID, now)
		if err != nil {
			return storeError(err)
		}
		if revoked == 0 {
			return ErrInvalidRefreshToken
		}
		envelope, newRecord, err = s.issue(ctx, repo, user, record.Scope, client)
		return err
	})
	if errors.Is(err, ErrInvalidRefreshToken) {
		s.reportReuse(ctx, payload, record, client)
		return nil, err
	}
	if err != nil {
		if !errors.Is(err, ErrStorePersistence) {
			err = storeError(err)
		}
		return nil, err
	}

	s.rememberRedeemed(ctx, payload, newRecord.ID)
	s.recordIssued(ctx, user, newRecord, client)
	s.auditor.RecordTokenEvent(ctx, audit.TokenEventRecord{
		EventType: audit.EventTypeTokenRefreshed,
		UserID:    user.ID,
		Username:  user.Username,
		TokenID:   record.ID,
		Scope:     record.Scope,
		IP:        client.IP,
		UserAgent: client.UserAgent,
	})
	return envelope, nil
}

func (s *TokenService) rememberRedeemed(ctx context.Context, payload refreshPayload, replacedBy string) {
	if s.markerStore == nil {
		return
	}
	marker := refreshMarker{
		AccessTokenID: payload.Subject,
		ReplacedBy:    replacedBy,
		RedeemedAt:    s.now().UnixMilli(),
	}
	if err := s.markerStore.Set(ctx, payload.ID, marker, params.RefreshMarkerExpiration); err != nil {
		slog.Warn("Failed to remember redeemed refresh token", "accessTokenID", payload.Subject, "error", err)
	}
}

// reportReuse flags a refresh token presented after its record was revoked.
// Reuse of a redeemed refresh token may indicate theft; the request itself is
// rejected like any other invalid refresh token.
func (s *TokenService) reportReuse(ctx context.Context, payload refreshPayload, record *model.AccessToken, client ClientInfo) {
	reason := "refresh token presented for a revoked access token"
	if s.markerStore != nil {
		marker, err := s.markerStore.Get(ctx, payload.ID)
		if err == nil {
			reason = "refresh token already redeemed, replaced by " + marker.ReplacedBy
		}
	}
	slog.Warn("Refresh token reuse detected", "accessTokenID", record.ID, "userID", record.UserID, "clientIP", client.IP, "reason", reason)
	s.auditor.RecordTokenEvent(ctx, audit.TokenEventRecord{
		EventType: audit.EventTypeRefreshTokenReuse,
		UserID:    record.UserID,
		TokenID:   record.ID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Reason:    reason,
	})
}

// Revoke permanently disables an access token and its refresh token. Revoking
// an already revoked token succeeds and keeps the first revocation time.
func (s *TokenService) Revoke(ctx context.Context, tokenID string) error {
	revoked, err := s.tokenRepo.Revoke(ctx, tokenID, s.now())
	if err != nil {
		return storeError(err)
	}
	if revoked > 0 {
		s.auditor.RecordTokenEvent(ctx, audit.TokenEventRecord{
			EventType: audit.EventTypeTokenRevoked,
			TokenID:   tokenID,
		})
		return nil
	}

	_, err = s.tokenRepo.FindByIDFresh(ctx, tokenID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTokenNotFound
	} else if err != nil {
		return storeError(err)
	}
	return nil
}

// PurgeExpired deletes records that expired more than the grace period ago.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := s.tokenRepo.DeleteExpired(ctx, s.now().Add(-params.TokenPurgeGracePeriod))
	if err != nil {
		return 0, storeError(err)
	}
	return deleted, nil
}

// RunPurger sweeps expired records every interval until ctx is done.
func (s *TokenService) RunPurger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.PurgeExpired(ctx)
			if err != nil {
				slog.Error("Failed to purge expired access tokens", "error", err)
				continue
			}
			slog.Debug("Purged expired access tokens", "count", deleted)
		}
	}
}

func NewTokenService(
	signer Signer,
	encrypter Encrypter,
	policy ScopePolicy,
	users UserLookup,
	tokenRepo AccessTokenRepository,
	cacheStorage store.Storage,
	auditor *audit.Recorder,
	opts Options,
) *TokenService {
	ttl := opts.AccessTokenTTL
	if ttl <= 0 {
		ttl = params.AccessTokenExpiration
	}
	svc := &TokenService{
		signer:    signer,
		encrypter: encrypter,
		policy:    policy,
		users:     users,
		tokenRepo: tokenRepo,
		auditor:   auditor,
		ttl:       ttl,
		issuer:    opts.Issuer,
		now:       time.Now,
	}
	if cacheStorage != nil {
		svc.markerStore = store.New[refreshMarker](cacheStorage, params.RefreshMarkerKeyPrefix)
	}
	return svc
}
