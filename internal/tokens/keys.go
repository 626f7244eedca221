// Package tokens issues the operator's signed tokens and verifies inbound
// JWT messages.
package tokens

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/egendata/operator/internal/config"
	"github.com/egendata/operator/internal/jwks"
)

// OperatorKey is the operator's signing identity.
type OperatorKey struct {
	Private *rsa.PrivateKey
	KeyID   string
}

// NewOperatorKey parses the configured PEM private key.
func NewOperatorKey(cfg *config.OperatorConfig) (*OperatorKey, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse operator private key: %w", err)
	}
	return &OperatorKey{Private: priv, KeyID: cfg.OperatorKeyID()}, nil
}

// Public returns the operator's public key.
func (k *OperatorKey) Public() *rsa.PublicKey {
	return &k.Private.PublicKey
}

// JWK returns the operator's public JWK.
func (k *OperatorKey) JWK() (jwk.Key, error) {
	return jwks.PublicJWK(k.Public(), k.KeyID)
}

// JWKS returns the operator's public key set.
func (k *OperatorKey) JWKS() (jwk.Set, error) {
	key, err := k.JWK()
	if err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("failed to build operator jwks: %w", err)
	}
	return set, nil
}

// GenerateKeyPEM creates a new RSA private key in PKCS#1 PEM form.
func GenerateKeyPEM(bits int) (string, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block)), nil
}

// PublicKeyPEM encodes key as a PKIX PEM block.
func PublicKeyPEM(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to encode public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ParsePublicKey accepts a stored account or service key in any of the
// forms the operator persists: a JWK, a PEM block, or a base64 encoded PEM.
func ParsePublicKey(stored string) (*rsa.PublicKey, error) {
	stored = strings.TrimSpace(stored)
	switch {
	case stored == "":
		return nil, errors.New("empty key")
	case strings.HasPrefix(stored, "{"):
		return jwks.ParseRSAPublicKey([]byte(stored))
	case strings.HasPrefix(stored, "-----BEGIN"):
		return parsePEMPublicKey([]byte(stored))
	}

	decoded, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, fmt.Errorf("unknown key format: %w", err)
	}
	return parsePEMPublicKey(decoded)
}

func parsePEMPublicKey(data []byte) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}
