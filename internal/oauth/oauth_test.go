package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdP(t *testing.T, userInfo string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"idp-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer idp-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(userInfo))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(server *httptest.Server) *OIDCProvider {
	return NewOIDCProvider(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://blog.example.com/oauth/callback",
		AuthURL:      server.URL + "/authorize",
		TokenURL:     server.URL + "/token",
		UserInfoURL:  server.URL + "/userinfo",
	})
}

func TestOIDCProvider_AuthCodeURL(t *testing.T) {
	provider := newTestProvider(newTestIdP(t, `{}`))

	authURL, err := url.Parse(provider.GetAuthCodeURL("state-123"))
	require.NoError(t, err)
	query := authURL.Query()
	assert.Equal(t, "/authorize", authURL.Path)
	assert.Equal(t, "client", query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "state-123", query.Get("state"))
	assert.Equal(t, "openid profile email", query.Get("scope"))
	assert.Equal(t, "oidc", provider.Name())
}

func TestOIDCProvider_ExchangeAndUserInfo(t *testing.T) {
	ctx := context.Background()
	provider := newTestProvider(newTestIdP(t, `{"sub":"42","email":"alice@example.com","name":"Alice","preferred_username":"alice"}`))

	token, err := provider.ExchangeToken(ctx, "good-code")
	require.NoError(t, err)
	assert.Equal(t, "idp-token", token.AccessToken)

	userInfo, err := provider.GetUserInfo(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", userInfo.Email)
	assert.Equal(t, "alice", userInfo.PreferredUsername)
	assert.Equal(t, "Alice", userInfo.Name)

	_, err = provider.ExchangeToken(ctx, "bad-code")
	assert.ErrorIs(t, err, ErrExchangeFailed)
}

func TestOIDCProvider_UserInfoWithoutEmail(t *testing.T) {
	ctx := context.Background()
	provider := newTestProvider(newTestIdP(t, `{"sub":"42","name":"Nobody"}`))

	token, err := provider.ExchangeToken(ctx, "good-code")
	require.NoError(t, err)
	_, err = provider.GetUserInfo(ctx, token)
	assert.ErrorIs(t, err, ErrMissingEmail)
}
