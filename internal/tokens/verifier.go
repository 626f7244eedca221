package tokens

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/jwks"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
)

// AccountKeys returns the public key an account registered with.
type AccountKeys interface {
	AccountKey(ctx context.Context, accountID string) (string, error)
}

// ServiceKeys looks up a registered service so a kid URL can be checked
// against its jwks_uri.
type ServiceKeys interface {
	GetService(ctx context.Context, serviceID string) (*models.Service, error)
}

// KeyFetcher resolves a kid URL to an RSA public key.
type KeyFetcher interface {
	RSAPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

var _ KeyFetcher = (*jwks.Client)(nil)

// MessageVerifier verifies inbound JWT messages.
type MessageVerifier struct {
	operator *OperatorKey
	fetcher  KeyFetcher
	accounts AccountKeys
	services ServiceKeys
	logger   *logrus.Logger
	parser   *jwt.Parser
}

// NewMessageVerifier creates a verifier. Only RS256 and RS512 are accepted.
func NewMessageVerifier(operator *OperatorKey, fetcher KeyFetcher, accounts AccountKeys, services ServiceKeys, logger *logrus.Logger) *MessageVerifier {
	return &MessageVerifier{
		operator: operator,
		fetcher:  fetcher,
		accounts: accounts,
		services: services,
		logger:   logger,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodRS512.Alg()}),
			jwt.WithJSONNumber(),
		),
	}
}

// Verify checks token and returns its header and claims. An embedded jwk
// header is trusted only for registration messages, where it is the key
// being registered.
func (v *MessageVerifier) Verify(ctx context.Context, token string) (*models.Message, error) {
	token = strings.TrimSpace(token)
	claims := jwt.MapClaims{}

	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.resolveKey(ctx, t, claims)
	})
	if err != nil {
		return nil, v.classify(err)
	}

	// Keep the signer's claim bytes; documents inside DATA_WRITE are stored as sent.
	parts := strings.Split(token, ".")
	payload, err := v.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, serviceerror.Validation("Malformed token", err)
	}

	return &models.Message{Header: parsed.Header, Payload: payload, Token: token}, nil
}

func (v *MessageVerifier) resolveKey(ctx context.Context, t *jwt.Token, claims jwt.MapClaims) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)
	msgType, _ := claims["type"].(string)

	if jwkHeader, ok := t.Header["jwk"]; ok && jwkHeader != nil {
		if !isRegistration(models.MessageType(msgType)) {
			return nil, serviceerror.Forbidden("Embedded jwk is only allowed for registration")
		}
		raw, err := json.Marshal(jwkHeader)
		if err != nil {
			return nil, serviceerror.Validation("Invalid jwk header", err)
		}
		key, err := jwks.ParseRSAPublicKey(raw)
		if err != nil {
			return nil, serviceerror.Validation("Invalid jwk header", err)
		}
		return key, nil
	}

	if kid == "" {
		return nil, serviceerror.Unauthorized("Could not retrieve key []")
	}

	if kid == v.operator.KeyID {
		return v.operator.Public(), nil
	}

	iss, _ := claims["iss"].(string)

	if strings.HasPrefix(kid, "http://") || strings.HasPrefix(kid, "https://") {
		if !v.kidBelongsTo(ctx, kid, iss) {
			v.logger.WithFields(logrus.Fields{"kid": kid, "iss": iss}).Warn("Signing key is not published by the issuer")
			return nil, serviceerror.Unauthorized(fmt.Sprintf("Could not retrieve key [%s]", kid))
		}
		key, err := v.fetcher.RSAPublicKey(ctx, kid)
		if err != nil {
			v.logger.WithError(err).WithField("kid", kid).Warn("Could not fetch signing key")
			return nil, serviceerror.Unauthorized(fmt.Sprintf("Could not retrieve key [%s]", kid))
		}
		return key, nil
	}

	stored, err := v.accounts.AccountKey(ctx, iss)
	if err != nil {
		v.logger.WithError(err).WithFields(logrus.Fields{"kid": kid, "iss": iss}).Warn("Could not load account key")
		return nil, serviceerror.Unauthorized(fmt.Sprintf("Could not retrieve key [%s]", kid))
	}
	key, err := ParsePublicKey(stored)
	if err != nil {
		return nil, serviceerror.Unauthorized(fmt.Sprintf("Could not retrieve key [%s]", kid))
	}
	return key, nil
}

// kidBelongsTo reports whether kid is published by iss: either on the
// issuer's own origin or under the jwks_uri the service registered.
func (v *MessageVerifier) kidBelongsTo(ctx context.Context, kid, iss string) bool {
	if iss == "" {
		return false
	}
	if sameOrigin(kid, iss) {
		return true
	}
	if v.services == nil {
		return false
	}
	service, err := v.services.GetService(ctx, iss)
	if err != nil {
		v.logger.WithError(err).WithField("iss", iss).Warn("Could not load service for key check")
		return false
	}
	if service == nil || !service.JWKSURI.Valid || service.JWKSURI.String == "" {
		return false
	}
	jwksURI := service.JWKSURI.String
	return kid == jwksURI || strings.HasPrefix(kid, strings.TrimSuffix(jwksURI, "/")+"/")
}

func sameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Host != "" && strings.EqualFold(ua.Scheme, ub.Scheme) && strings.EqualFold(ua.Host, ub.Host)
}

func (v *MessageVerifier) classify(err error) error {
	if se, ok := serviceerror.As(err); ok {
		return se
	}
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return serviceerror.Validation("Malformed token", err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return serviceerror.Forbidden("Token is not valid now")
	default:
		v.logger.WithError(err).Debug("Token verification failed")
		return serviceerror.Forbidden("Invalid signature")
	}
}

func isRegistration(t models.MessageType) bool {
	return t == models.AccountRegistration || t == models.ServiceRegistration
}
