package signature

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/tokens"
)

const clientKid = "https://mycv.work/jwks/client_key"

type stubServices map[string]*models.Service

func (s stubServices) GetService(_ context.Context, id string) (*models.Service, error) {
	if id == "https://broken" {
		return nil, errors.New("db down")
	}
	return s[id], nil
}

type stubFetcher map[string]*rsa.PublicKey

func (s stubFetcher) RSAPublicKey(_ context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := s[kid]; ok {
		return key, nil
	}
	return nil, errors.New("not found")
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func envelope(t *testing.T, key *rsa.PrivateKey, alg, kid, data string) []byte {
	t.Helper()
	method := jwt.SigningMethodRS256
	if alg == "RSA-SHA512" {
		method = jwt.SigningMethodRS512
	}
	sig, err := method.Sign(data, key)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"data": json.RawMessage(data),
		"signature": map[string]string{
			"alg":  alg,
			"kid":  kid,
			"data": base64.StdEncoding.EncodeToString(sig),
		},
	})
	require.NoError(t, err)
	return body
}

func newVerifier(t *testing.T, clientKey *rsa.PrivateKey, unsafe bool) *Verifier {
	t.Helper()
	services := stubServices{
		"https://mycv.work": {
			ServiceID:   "https://mycv.work",
			DisplayName: "My CV",
			Description: sql.NullString{String: "Build your CV", Valid: true},
			JWKSURI:     sql.NullString{String: "https://mycv.work/jwks", Valid: true},
			EventsURI:   "https://mycv.work/events",
		},
	}
	return NewVerifier(nil, stubFetcher{clientKid: &clientKey.PublicKey}, services, unsafe, logrus.New())
}

func TestVerify_KeyIDMode(t *testing.T) {
	key := generateKey(t)
	v := newVerifier(t, key, false)

	data := `{"clientId":"https://mycv.work","scope":[{"domain":"a","area":"b"}]}`
	payload, verified, err := v.Verify(context.Background(), envelope(t, key, "RSA-SHA256", clientKid, data), KeyID)

	require.NoError(t, err)
	assert.JSONEq(t, data, string(payload))
	assert.Equal(t, "RSA-SHA256", verified.Alg)
	assert.Equal(t, clientKid, verified.Kid)
	require.NotNil(t, verified.Client)
	assert.Equal(t, "My CV", verified.Client.DisplayName)
	assert.Equal(t, "https://mycv.work/jwks", verified.Client.JWKSURL)
	assert.True(t, strings.HasPrefix(verified.Key, "-----BEGIN PUBLIC KEY-----"))
}

func TestVerify_AccountKeyMode(t *testing.T) {
	key := generateKey(t)
	pubPEM, err := tokens.PublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)

	data := `{"accountKey":"` + base64.StdEncoding.EncodeToString([]byte(pubPEM)) + `","pds":{"provider":"memory","access_token":"x"}}`
	_, verified, err := newVerifier(t, key, false).Verify(context.Background(), envelope(t, key, "RSA-SHA512", "", data), AccountKey)

	require.NoError(t, err)
	assert.Nil(t, verified.Client)
}

func TestVerify_Failures(t *testing.T) {
	key := generateKey(t)
	other := generateKey(t)
	data := `{"clientId":"https://mycv.work"}`

	tests := []struct {
		name    string
		body    []byte
		mode    Mode
		unsafe  bool
		status  int
		message string
	}{
		{
			name:    "algorithm outside allow list",
			body:    envelope(t, key, "RSA-SHA1", clientKid, data),
			mode:    KeyID,
			status:  http.StatusForbidden,
			message: "Invalid algorithm",
		},
		{
			name:    "signature by another key",
			body:    envelope(t, other, "RSA-SHA256", clientKid, data),
			mode:    KeyID,
			status:  http.StatusForbidden,
			message: "Invalid signature",
		},
		{
			name:    "unknown kid",
			body:    envelope(t, key, "RSA-SHA256", "https://mycv.work/jwks/missing", data),
			mode:    KeyID,
			status:  http.StatusUnauthorized,
			message: "Could not retrieve key [https://mycv.work/jwks/missing]",
		},
		{
			name:    "http client id in production",
			body:    envelope(t, key, "RSA-SHA256", clientKid, `{"clientId":"http://mycv.work"}`),
			mode:    KeyID,
			status:  http.StatusForbidden,
			message: "Unsafe (http) is not allowed",
		},
		{
			name:   "missing client id",
			body:   envelope(t, key, "RSA-SHA256", clientKid, `{"x":1}`),
			mode:   KeyID,
			status: http.StatusBadRequest,
		},
		{
			name:   "missing account key",
			body:   envelope(t, key, "RSA-SHA256", "", `{"x":1}`),
			mode:   AccountKey,
			status: http.StatusBadRequest,
		},
		{
			name:   "not an envelope",
			body:   []byte(`{"data":{}}`),
			mode:   KeyID,
			status: http.StatusBadRequest,
		},
		{
			name:   "client lookup fails",
			body:   envelope(t, key, "RSA-SHA256", clientKid, `{"clientId":"https://broken"}`),
			mode:   KeyID,
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := newVerifier(t, key, tt.unsafe).Verify(context.Background(), tt.body, tt.mode)
			require.Error(t, err)
			assert.Equal(t, tt.status, serviceerror.StatusOf(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}
		})
	}
}

func TestVerify_HTTPClientAllowedWhenUnsafe(t *testing.T) {
	key := generateKey(t)
	data := `{"clientId":"http://localhost:4000"}`

	_, verified, err := newVerifier(t, key, true).Verify(context.Background(), envelope(t, key, "RSA-SHA256", clientKid, data), KeyID)
	require.NoError(t, err)
	assert.Nil(t, verified.Client)
}

func TestSigned_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	key := generateKey(t)
	v := newVerifier(t, key, false)

	router := gin.New()
	router.POST("/", Signed(v, KeyID), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": Data(c), "kid": From(c).Kid})
	})

	data := `{"clientId":"https://mycv.work"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(envelope(t, key, "RSA-SHA256", clientKid, data)))))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"clientId":"https://mycv.work"},"kid":"`+clientKid+`"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(envelope(t, key, "RSA-MD5", clientKid, data)))))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
