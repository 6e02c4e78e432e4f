package joseutil

import (
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Signer signs and verifies compact JWS tokens. HMAC signers keep their
// secret private and publish an empty key set; RSA signers publish the public
// key so that resource servers can verify tokens on their own.
type Signer struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	keyID     string
	jwks      jose.JSONWebKeySet
}

func (s *Signer) Algorithm() string {
	return s.method.Alg()
}

// Sign returns the compact serialization of claims.
func (s *Signer) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(s.method, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	return token.SignedString(s.signKey)
}

// Verify checks the signature and registered time claims of tokenStr and
// decodes it into claims. Any rejection is reported as ErrTokenInvalid.
func (s *Signer) Verify(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.verifyKey, nil
	}, jwt.WithValidMethods([]string{s.method.Alg()}), jwt.WithIssuedAt())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

// JWKS returns the public verification keys.
func (s *Signer) JWKS() jose.JSONWebKeySet {
	return s.jwks
}

func NewHMACSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	return &Signer{
		method:    jwt.SigningMethodHS256,
		signKey:   []byte(secret),
		verifyKey: []byte(secret),
		jwks:      jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}},
	}, nil
}

func NewRSASigner(privateKeyPEM []byte) (*Signer, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return newRSASigner(privateKey)
}

func newRSASigner(privateKey *rsa.PrivateKey) (*Signer, error) {
	jwk := jose.JSONWebKey{
		Key:       &privateKey.PublicKey,
		Algorithm: jwt.SigningMethodRS256.Alg(),
		Use:       "sig",
	}
	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, err
	}
	jwk.KeyID = base64.RawURLEncoding.EncodeToString(thumbprint)
	return &Signer{
		method:    jwt.SigningMethodRS256,
		signKey:   privateKey,
		verifyKey: &privateKey.PublicKey,
		keyID:     jwk.KeyID,
		jwks:      jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}},
	}, nil
}
