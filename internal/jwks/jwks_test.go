package jwks

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func serveJSON(t *testing.T, body interface{}) *httptest.Server {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRSAPublicKey_SingleJWK(t *testing.T) {
	priv := newKey(t)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k, err := PublicJWK(&priv.PublicKey, server.URL+r.URL.Path)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(k)
	}))
	defer server.Close()

	client := NewClient(time.Second, logrus.New())
	pub, err := client.RSAPublicKey(context.Background(), server.URL+"/jwks/sign_key")

	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey.N, pub.N)
}

func TestKey_LooksUpKidInSet(t *testing.T) {
	first, second := newKey(t), newKey(t)
	k1, err := PublicJWK(&first.PublicKey, "k1")
	require.NoError(t, err)
	k2, err := PublicJWK(&second.PublicKey, "k2")
	require.NoError(t, err)

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(k1))
	require.NoError(t, set.AddKey(k2))
	server := serveJSON(t, set)

	client := NewClient(time.Second, logrus.New())
	key, err := client.Key(context.Background(), server.URL, "k2")
	require.NoError(t, err)

	pub, err := ToRSAPublicKey(key)
	require.NoError(t, err)
	assert.Equal(t, second.PublicKey.N, pub.N)

	_, err = client.Key(context.Background(), server.URL, "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestRSAPublicKey_FetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewClient(time.Second, logrus.New()).RSAPublicKey(context.Background(), server.URL+"/jwks/nope")
	assert.Error(t, err)
}

func TestParseRSAPublicKey(t *testing.T) {
	priv := newKey(t)
	k, err := PublicJWK(&priv.PublicKey, "kid-1")
	require.NoError(t, err)
	raw, err := json.Marshal(k)
	require.NoError(t, err)

	pub, err := ParseRSAPublicKey(raw)
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey.E, pub.E)

	_, err = ParseRSAPublicKey([]byte(`{"kty":"nope"}`))
	assert.Error(t, err)
}
