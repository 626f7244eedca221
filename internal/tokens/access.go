package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokens issues and checks the HS256 bearer tokens handed to clients
// when an account approves a consent.
type AccessTokens struct {
	secret []byte
	now    func() time.Time
}

type accessClaims struct {
	Data struct {
		ConsentID string `json:"consentId"`
	} `json:"data"`
	jwt.RegisteredClaims
}

// NewAccessTokens creates the issuer for secret.
func NewAccessTokens(secret string) *AccessTokens {
	return &AccessTokens{secret: []byte(secret), now: time.Now}
}

// Create returns a token naming consentID.
func (a *AccessTokens) Create(consentID string) (string, error) {
	claims := accessClaims{}
	claims.Data.ConsentID = consentID
	claims.IssuedAt = jwt.NewNumericDate(a.now())

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Verify returns the consent id carried by token.
func (a *AccessTokens) Verify(token string) (string, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid access token: %w", err)
	}
	if claims.Data.ConsentID == "" {
		return "", errors.New("invalid access token: missing consent id")
	}
	return claims.Data.ConsentID, nil
}
