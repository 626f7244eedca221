package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egendata/operator/internal/serviceerror"
)

type oauthProvider struct {
	stubProvider
	creds []byte
	err   error
}

func (p oauthProvider) Authorize(context.Context, string) ([]byte, error) {
	return p.creds, p.err
}

func TestPDSService_Providers(t *testing.T) {
	ts := NewTestSetup(t)
	svc := NewPDSService(ts.Registry, ts.Logger)

	names := []string{}
	for _, d := range svc.Providers() {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{"memory", "dropbox"}, names)
}

func TestPDSService_Authorize(t *testing.T) {
	ts := NewTestSetup(t)
	require.NoError(t, ts.Registry.Register(oauthProvider{stubProvider: stubProvider{name: "oauth"}, creds: []byte(`{"apiKey":"tok"}`)}))
	require.NoError(t, ts.Registry.Register(oauthProvider{stubProvider: stubProvider{name: "broken"}, err: errors.New("invalid_grant")}))
	svc := NewPDSService(ts.Registry, ts.Logger)

	creds, err := svc.Authorize(context.Background(), "oauth", "code-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"apiKey":"tok"}`, string(creds))

	_, err = svc.Authorize(context.Background(), "oauth", "")
	assert.EqualError(t, err, "code is required")

	_, err = svc.Authorize(context.Background(), "floppy", "code-1")
	assert.Equal(t, http.StatusNotFound, serviceerror.StatusOf(err))

	_, err = svc.Authorize(context.Background(), "memory", "code-1")
	assert.Equal(t, http.StatusBadRequest, serviceerror.StatusOf(err))

	_, err = svc.Authorize(context.Background(), "broken", "code-1")
	assert.Equal(t, http.StatusUnauthorized, serviceerror.StatusOf(err))
}
