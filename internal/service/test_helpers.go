package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/egendata/operator/internal/config"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/pds"
	"github.com/egendata/operator/internal/service/mocks"
	"github.com/egendata/operator/internal/tokens"
	"github.com/egendata/operator/pkg/utils"
)

const testHost = "https://operator.test"

var (
	operatorKeyOnce sync.Once
	operatorKey     *tokens.OperatorKey
	operatorKeyErr  error
)

// stubProvider registers a name backed by the in-memory store.
type stubProvider struct {
	name string
}

func (p stubProvider) Name() string { return p.name }

func (p stubProvider) Description() pds.Description { return pds.Description{Name: p.name} }

func (p stubProvider) Open(ctx context.Context, credentials []byte) (pds.Backend, error) {
	return pds.NewMemoryProvider().Open(ctx, credentials)
}

// TestSetup contains common test dependencies
type TestSetup struct {
	Accounts    *mocks.MockAccountStore
	Services    *mocks.MockServiceStore
	Connections *mocks.MockConnectionStore
	Permissions *mocks.MockPermissionStore
	Consents    *mocks.MockConsentStore
	Requests    *mocks.MockConsentRequestStore
	Events      *mocks.MockEventSender
	Verifier    *mocks.MockTokenVerifier
	Keys        *mocks.MockReadKeyFetcher
	Registry    *pds.Registry
	Issuer      *tokens.Issuer
	Access      *tokens.AccessTokens
	Logger      *logrus.Logger
}

// NewTestSetup creates a new test setup with mocks and the in-memory PDS
func NewTestSetup(t *testing.T) *TestSetup {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry, err := pds.NewRegistry(pds.NewMemoryProvider(), stubProvider{name: "dropbox"})
	require.NoError(t, err)

	return &TestSetup{
		Accounts:    &mocks.MockAccountStore{},
		Services:    &mocks.MockServiceStore{},
		Connections: &mocks.MockConnectionStore{},
		Permissions: &mocks.MockPermissionStore{},
		Consents:    &mocks.MockConsentStore{},
		Requests:    &mocks.MockConsentRequestStore{},
		Events:      &mocks.MockEventSender{},
		Verifier:    &mocks.MockTokenVerifier{},
		Keys:        &mocks.MockReadKeyFetcher{},
		Registry:    registry,
		Issuer:      tokens.NewIssuer(testOperatorKey(t), testHost),
		Access:      tokens.NewAccessTokens("test-secret"),
		Logger:      logger,
	}
}

// testOperatorKey generates one RSA key for the whole package run.
func testOperatorKey(t *testing.T) *tokens.OperatorKey {
	t.Helper()
	operatorKeyOnce.Do(func() {
		var pemKey string
		pemKey, operatorKeyErr = tokens.GenerateKeyPEM(2048)
		if operatorKeyErr != nil {
			return
		}
		operatorKey, operatorKeyErr = tokens.NewOperatorKey(&config.OperatorConfig{Host: testHost, PrivateKey: pemKey})
	})
	require.NoError(t, operatorKeyErr)
	return operatorKey
}

// newMessage builds a verified message from payload claims.
func newMessage(t *testing.T, header map[string]interface{}, payload interface{}) *models.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	if header == nil {
		header = map[string]interface{}{}
	}
	return &models.Message{Header: header, Payload: raw}
}

// parseClaims decodes an issued token without verifying it.
func parseClaims(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	return claims
}

// uniqueID keeps tests apart on the shared in-memory PDS.
func uniqueID() string {
	return utils.GenerateID()
}

func strPtr(s string) *string {
	return &s
}
