package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/pds"
	"github.com/egendata/operator/internal/serviceerror"
)

func newLegacyDataService(ts *TestSetup) *LegacyDataService {
	return NewLegacyDataService(ts.Consents, ts.Registry, ts.Access, ts.Logger)
}

func consentScope(accountID, area string, read, write bool) models.ConsentScope {
	return models.ConsentScope{AccountID: accountID, PDSProvider: "memory", Domain: serviceID, Area: area, Read: read, Write: write}
}

func TestLegacyData_WriteThenRead(t *testing.T) {
	ts := NewTestSetup(t)
	account := uniqueID()
	ts.Consents.On("Scopes", mock.Anything, "consent-1", serviceID, "cv").
		Return([]models.ConsentScope{consentScope(account, "cv", true, true)}, nil)
	ts.Consents.On("Scopes", mock.Anything, "consent-1", serviceID, "").
		Return([]models.ConsentScope{consentScope(account, "cv", true, true), consentScope(account, "edu", true, false)}, nil)

	svc := newLegacyDataService(ts)
	require.NoError(t, svc.Write(context.Background(), "consent-1", serviceID, "cv", json.RawMessage(`"encrypted text"`)))

	fs, err := ts.Registry.Get(context.Background(), "memory", nil)
	require.NoError(t, err)
	stored, err := fs.ReadFile(context.Background(), pds.LegacyDataPath(account, serviceID, "cv"))
	require.NoError(t, err)
	assert.Equal(t, "encrypted text", string(stored))

	data, err := svc.Read(context.Background(), "consent-1", serviceID, "")
	require.NoError(t, err)
	require.NotNil(t, data[serviceID]["cv"])
	assert.Equal(t, "encrypted text", *data[serviceID]["cv"])
	assert.Contains(t, data[serviceID], "edu")
	assert.Nil(t, data[serviceID]["edu"])
}

func TestLegacyData_Errors(t *testing.T) {
	ts := NewTestSetup(t)
	ts.Consents.On("Scopes", mock.Anything, "none", "", "").Return([]models.ConsentScope{}, nil)
	ts.Consents.On("Scopes", mock.Anything, "read-only", serviceID, "cv").
		Return([]models.ConsentScope{consentScope("acc", "cv", true, false)}, nil)

	svc := newLegacyDataService(ts)

	_, err := svc.Read(context.Background(), "none", "", "")
	assert.EqualError(t, err, "Found no consents for the provided arguments")

	err = svc.Write(context.Background(), "read-only", serviceID, "cv", json.RawMessage(`{}`))
	assert.Equal(t, http.StatusForbidden, serviceerror.StatusOf(err))

	err = svc.Write(context.Background(), "read-only", serviceID, "", json.RawMessage(`{}`))
	assert.Equal(t, http.StatusBadRequest, serviceerror.StatusOf(err))
}

func TestLegacyData_ConsentID(t *testing.T) {
	ts := NewTestSetup(t)
	token, err := ts.Access.Create("consent-1")
	require.NoError(t, err)

	svc := newLegacyDataService(ts)
	got, err := svc.ConsentID(token)
	require.NoError(t, err)
	assert.Equal(t, "consent-1", got)

	_, err = svc.ConsentID("garbage")
	assert.Equal(t, http.StatusUnauthorized, serviceerror.StatusOf(err))
}
