// Package signature verifies signed JSON envelopes of the form
// {data, signature:{alg, kid, data}}.
package signature

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/tokens"
)

// Mode selects where the verification key comes from.
type Mode int

const (
	// AccountKey verifies with the base64 PEM in data.accountKey.
	AccountKey Mode = iota
	// KeyID verifies with the key published at signature.kid.
	KeyID
)

var algorithms = map[string]jwt.SigningMethod{
	"RSA-SHA256": jwt.SigningMethodRS256,
	"RSA-SHA512": jwt.SigningMethodRS512,
}

// Envelope is a signed request body.
type Envelope struct {
	Data      json.RawMessage `json:"data" validate:"required"`
	Signature Signature       `json:"signature" validate:"required"`
}

// Signature is the signature block of an envelope.
type Signature struct {
	Alg  string `json:"alg" validate:"required"`
	Kid  string `json:"kid"`
	Data string `json:"data" validate:"required"`
}

// Verified is the signer context of an accepted envelope.
type Verified struct {
	Alg    string
	Kid    string
	Data   string
	Client *models.ClientInfo
	// Key is the verification key as PEM.
	Key string
}

// Services finds a registered service by id.
type Services interface {
	GetService(ctx context.Context, serviceID string) (*models.Service, error)
}

// Verifier checks envelopes. It has no side effects.
type Verifier struct {
	operator *tokens.OperatorKey
	fetcher  tokens.KeyFetcher
	services Services
	unsafe   bool
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewVerifier creates a verifier. unsafe permits http client ids.
func NewVerifier(operator *tokens.OperatorKey, fetcher tokens.KeyFetcher, services Services, unsafe bool, logger *logrus.Logger) *Verifier {
	return &Verifier{
		operator: operator,
		fetcher:  fetcher,
		services: services,
		unsafe:   unsafe,
		validate: validator.New(),
		logger:   logger,
	}
}

// Verify checks body in the given mode and returns the payload and the
// signer context.
func (v *Verifier) Verify(ctx context.Context, body []byte, mode Mode) (json.RawMessage, *Verified, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil, serviceerror.Validation("Invalid signed payload", err)
	}
	if err := v.validate.Struct(&envelope); err != nil {
		return nil, nil, serviceerror.Validation("Invalid signed payload", err)
	}

	var fields struct {
		AccountKey string `json:"accountKey"`
		ClientID   string `json:"clientId"`
	}
	if err := json.Unmarshal(envelope.Data, &fields); err != nil {
		return nil, nil, serviceerror.Validation("data must be an object", err)
	}
	if err := v.checkMode(mode, &envelope, fields.AccountKey, fields.ClientID); err != nil {
		return nil, nil, err
	}

	method, ok := algorithms[envelope.Signature.Alg]
	if !ok {
		return nil, nil, serviceerror.Forbidden("Invalid algorithm")
	}

	var client *models.ClientInfo
	if fields.ClientID != "" {
		service, err := v.services.GetService(ctx, fields.ClientID)
		if err != nil {
			return nil, nil, serviceerror.Internal("failed to load client", err)
		}
		if service != nil {
			client = service.ToClientInfo()
		}
	}

	key, err := v.resolveKey(ctx, mode, &envelope.Signature, fields.AccountKey)
	if err != nil {
		return nil, nil, err
	}

	var canonical bytes.Buffer
	if err := json.Compact(&canonical, envelope.Data); err != nil {
		return nil, nil, serviceerror.Validation("Invalid signed payload", err)
	}
	sig, err := base64.StdEncoding.DecodeString(envelope.Signature.Data)
	if err != nil {
		return nil, nil, serviceerror.Forbidden("Invalid signature")
	}
	if err := method.Verify(canonical.String(), sig, key); err != nil {
		v.logger.WithError(err).WithField("kid", envelope.Signature.Kid).Debug("Envelope signature mismatch")
		return nil, nil, serviceerror.Forbidden("Invalid signature")
	}

	keyPEM, err := tokens.PublicKeyPEM(key)
	if err != nil {
		return nil, nil, serviceerror.Internal("failed to encode key", err)
	}

	return envelope.Data, &Verified{
		Alg:    envelope.Signature.Alg,
		Kid:    envelope.Signature.Kid,
		Data:   envelope.Signature.Data,
		Client: client,
		Key:    keyPEM,
	}, nil
}

func (v *Verifier) checkMode(mode Mode, envelope *Envelope, accountKey, clientID string) error {
	if mode == AccountKey {
		if accountKey == "" {
			return serviceerror.Validation(`"accountKey" is required`, nil)
		}
		if _, err := base64.StdEncoding.DecodeString(accountKey); err != nil {
			return serviceerror.Validation(`"accountKey" must be a valid base64 string`, err)
		}
		return nil
	}

	if envelope.Signature.Kid == "" {
		return serviceerror.Validation(`"kid" is required`, nil)
	}
	if clientID == "" {
		return serviceerror.Validation(`"clientId" is required`, nil)
	}
	if err := v.validate.Var(clientID, "uri"); err != nil {
		return serviceerror.Validation(`"clientId" must be a valid uri`, err)
	}
	if strings.HasPrefix(clientID, "http://") && !v.unsafe {
		return serviceerror.Forbidden("Unsafe (http) is not allowed")
	}
	return nil
}

func (v *Verifier) resolveKey(ctx context.Context, mode Mode, sig *Signature, accountKey string) (*rsa.PublicKey, error) {
	if mode == AccountKey {
		key, err := tokens.ParsePublicKey(accountKey)
		if err != nil {
			return nil, serviceerror.Validation("Cannot find signature key", err)
		}
		return key, nil
	}

	if v.operator != nil && sig.Kid == v.operator.KeyID {
		return v.operator.Public(), nil
	}
	key, err := v.fetcher.RSAPublicKey(ctx, sig.Kid)
	if err != nil {
		v.logger.WithError(err).WithField("kid", sig.Kid).Warn("Could not retrieve signing key")
		return nil, serviceerror.Unauthorized(fmt.Sprintf("Could not retrieve key [%s]", sig.Kid))
	}
	return key, nil
}
