// Package jwks resolves counterpart public keys published as JWK or JWKS
// documents.
package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
)

// Client fetches keys over HTTP. A kid is the URL of either a single JWK or
// a JWKS document containing the key.
type Client struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a client whose fetches time out after timeout.
func NewClient(timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch downloads and parses the key set at url.
func (c *Client) Fetch(ctx context.Context, url string) (jwk.Set, error) {
	start := time.Now()
	set, err := jwk.Fetch(ctx, url, jwk.WithHTTPClient(c.httpClient))
	if err != nil {
		c.logger.WithError(err).WithField("url", url).Warn("Failed to fetch JWKS")
		return nil, fmt.Errorf("failed to fetch jwks %s: %w", url, err)
	}

	c.logger.WithFields(logrus.Fields{
		"url":      url,
		"keys":     set.Len(),
		"duration": time.Since(start),
	}).Debug("Fetched JWKS")

	return set, nil
}

// Key resolves kid from the document at url. A document holding exactly one
// key without a matching kid yields that key.
func (c *Client) Key(ctx context.Context, url, kid string) (jwk.Key, error) {
	set, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if key, ok := set.LookupKeyID(kid); ok {
		return key, nil
	}
	if set.Len() == 1 {
		key, _ := set.Key(0)
		return key, nil
	}
	return nil, fmt.Errorf("key %s not found in %s", kid, url)
}

// RSAPublicKey resolves kid by fetching the kid URL itself.
func (c *Client) RSAPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, err := c.Key(ctx, kid, kid)
	if err != nil {
		return nil, err
	}
	return ToRSAPublicKey(key)
}

// KeyJSON resolves kid and returns its public JWK serialization.
func (c *Client) KeyJSON(ctx context.Context, kid string) (json.RawMessage, error) {
	key, err := c.Key(ctx, kid, kid)
	if err != nil {
		return nil, err
	}
	pub, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key %s: %w", kid, err)
	}
	return json.Marshal(pub)
}

// ToRSAPublicKey extracts the raw RSA public key from a JWK.
func ToRSAPublicKey(key jwk.Key) (*rsa.PublicKey, error) {
	var pub rsa.PublicKey
	if err := key.Raw(&pub); err != nil {
		return nil, fmt.Errorf("key %s is not an RSA public key: %w", key.KeyID(), err)
	}
	return &pub, nil
}

// ParseRSAPublicKey parses a single JWK serialization into an RSA public key.
func ParseRSAPublicKey(raw []byte) (*rsa.PublicKey, error) {
	key, err := jwk.ParseKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jwk: %w", err)
	}
	return ToRSAPublicKey(key)
}

// PublicJWK builds the public JWK for key with kid, marked for signing.
func PublicJWK(key *rsa.PublicKey, kid string) (jwk.Key, error) {
	k, err := jwk.FromRaw(key)
	if err != nil {
		return nil, fmt.Errorf("failed to build jwk: %w", err)
	}
	if err := k.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	if err := k.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, err
	}
	return k, nil
}
