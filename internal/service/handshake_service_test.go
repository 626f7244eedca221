package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/egendata/operator/internal/dao"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
)

const (
	accountID = "mydata://account/XYZ"
	serviceID = "https://mycv.work"
	eventsURI = "https://mycv.work/events"
)

func newHandshakeService(ts *TestSetup) *HandshakeService {
	return NewHandshakeService(ts.Connections, ts.Verifier, ts.Keys, ts.Issuer, ts.Events, ts.Logger)
}

func handshakeMessage(t *testing.T, msgType models.MessageType) *models.Message {
	return newMessage(t, nil, map[string]interface{}{
		"type":    msgType,
		"iss":     accountID,
		"payload": "inner.signed.token",
	})
}

func connectionPayload(t *testing.T, approved []models.ApprovedPermission) *models.Message {
	return newMessage(t, nil, models.ConnectionPayload{
		Iss:         accountID,
		Aud:         serviceID,
		Sub:         "conn-1",
		Permissions: &models.ConnectionPermission{Approved: approved},
	})
}

func TestLoginResponse(t *testing.T) {
	ts := NewTestSetup(t)
	ts.Verifier.On("Verify", mock.Anything, "inner.signed.token").
		Return(newMessage(t, nil, models.LoginPayload{Aud: serviceID, Sub: "session"}), nil)
	ts.Connections.On("Check", mock.Anything, accountID, serviceID).
		Return(&dao.ConnectionCheck{AccountExists: true, ServiceExists: true, EventsURI: eventsURI, ConnectionExists: true}, nil)

	var sent string
	ts.Events.On("SendJWT", mock.Anything, eventsURI, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.String(2) }).
		Return(nil).Once()

	err := newHandshakeService(ts).LoginResponse(context.Background(), handshakeMessage(t, models.LoginResponse))

	require.NoError(t, err)
	claims := parseClaims(t, sent)
	assert.Equal(t, string(models.LoginEvent), claims["type"])
	assert.Equal(t, serviceID, claims["aud"])
	assert.Equal(t, testHost, claims["iss"])
	assert.Equal(t, "inner.signed.token", claims["payload"])
}

func TestLoginResponse_Missing(t *testing.T) {
	tests := []struct {
		name    string
		check   *dao.ConnectionCheck
		message string
	}{
		{"account", &dao.ConnectionCheck{ServiceExists: true, ConnectionExists: true}, "No such account " + accountID},
		{"service", &dao.ConnectionCheck{AccountExists: true, ConnectionExists: true}, "No such service " + serviceID},
		{"connection", &dao.ConnectionCheck{AccountExists: true, ServiceExists: true}, "No connection exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := NewTestSetup(t)
			ts.Verifier.On("Verify", mock.Anything, mock.Anything).
				Return(newMessage(t, nil, models.LoginPayload{Aud: serviceID}), nil)
			ts.Connections.On("Check", mock.Anything, accountID, serviceID).Return(tt.check, nil)

			err := newHandshakeService(ts).LoginResponse(context.Background(), handshakeMessage(t, models.LoginResponse))

			assert.EqualError(t, err, tt.message)
			ts.Events.AssertNotCalled(t, "SendJWT", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestConnectionResponse(t *testing.T) {
	ts := NewTestSetup(t)
	approved := []models.ApprovedPermission{
		{ID: "p1", Domain: serviceID, Area: "cv", Type: models.PermissionRead, LawfulBasis: "CONSENT", Kid: serviceID + "/jwks/enc"},
		{ID: "p2", Domain: serviceID, Area: "edu", Type: models.PermissionRead, LawfulBasis: "CONSENT", Kid: serviceID + "/jwks/enc"},
		{ID: "p3", Domain: serviceID, Area: "cv", Type: models.PermissionWrite, LawfulBasis: "CONSENT"},
	}
	readKey := json.RawMessage(`{"kid":"https://mycv.work/jwks/enc","kty":"RSA"}`)

	ts.Verifier.On("Verify", mock.Anything, "inner.signed.token").Return(connectionPayload(t, approved), nil)
	ts.Connections.On("Check", mock.Anything, accountID, serviceID).
		Return(&dao.ConnectionCheck{AccountExists: true, ServiceExists: true, EventsURI: eventsURI}, nil)
	ts.Keys.On("KeyJSON", mock.Anything, serviceID+"/jwks/enc").Return(readKey, nil).Once()

	var committed bool
	ts.Connections.On("Create", mock.Anything, "conn-1", accountID, serviceID, approved,
		map[string]json.RawMessage{serviceID + "/jwks/enc": readKey}).
		Run(func(mock.Arguments) { committed = true }).
		Return(nil).Once()
	ts.Events.On("SendJWT", mock.Anything, eventsURI, mock.Anything).
		Run(func(mock.Arguments) { assert.True(t, committed, "event sent before commit") }).
		Return(nil).Once()

	err := newHandshakeService(ts).ConnectionResponse(context.Background(), handshakeMessage(t, models.ConnectionResponse))

	require.NoError(t, err)
	ts.Keys.AssertExpectations(t)
	ts.Connections.AssertExpectations(t)
	ts.Events.AssertExpectations(t)
}

func TestConnectionResponse_NoRowsWhenAccountMissing(t *testing.T) {
	ts := NewTestSetup(t)
	ts.Verifier.On("Verify", mock.Anything, mock.Anything).Return(connectionPayload(t, nil), nil)
	ts.Connections.On("Check", mock.Anything, accountID, serviceID).
		Return(&dao.ConnectionCheck{ServiceExists: true}, nil)

	err := newHandshakeService(ts).ConnectionResponse(context.Background(), handshakeMessage(t, models.ConnectionResponse))

	assert.EqualError(t, err, "No such account "+accountID)
	ts.Connections.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConnectionResponse_AlreadyExists(t *testing.T) {
	ts := NewTestSetup(t)
	ts.Verifier.On("Verify", mock.Anything, mock.Anything).Return(connectionPayload(t, nil), nil)
	ts.Connections.On("Check", mock.Anything, accountID, serviceID).
		Return(&dao.ConnectionCheck{AccountExists: true, ServiceExists: true, ConnectionExists: true}, nil)

	err := newHandshakeService(ts).ConnectionResponse(context.Background(), handshakeMessage(t, models.ConnectionResponse))

	assert.Equal(t, http.StatusConflict, serviceerror.StatusOf(err))
}

func TestConnectionResponse_InvalidInnerToken(t *testing.T) {
	ts := NewTestSetup(t)
	ts.Verifier.On("Verify", mock.Anything, mock.Anything).Return(nil, serviceerror.Forbidden("Invalid signature"))

	err := newHandshakeService(ts).ConnectionResponse(context.Background(), handshakeMessage(t, models.ConnectionResponse))

	assert.EqualError(t, err, "Could not verify CONNECTION_RESPONSE payload")
}

func TestConnectionResponse_TransactionFailureSendsNoEvent(t *testing.T) {
	ts := NewTestSetup(t)
	ts.Verifier.On("Verify", mock.Anything, mock.Anything).Return(connectionPayload(t, nil), nil)
	ts.Connections.On("Check", mock.Anything, accountID, serviceID).
		Return(&dao.ConnectionCheck{AccountExists: true, ServiceExists: true, EventsURI: eventsURI}, nil)
	ts.Connections.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("rollback"))

	err := newHandshakeService(ts).ConnectionResponse(context.Background(), handshakeMessage(t, models.ConnectionResponse))

	assert.True(t, serviceerror.Is(err, serviceerror.KindTransaction))
	ts.Events.AssertNotCalled(t, "SendJWT", mock.Anything, mock.Anything, mock.Anything)
}

func TestConnectionResponse_ReadKeyUnavailable(t *testing.T) {
	ts := NewTestSetup(t)
	approved := []models.ApprovedPermission{
		{ID: "p1", Domain: serviceID, Area: "cv", Type: "read", LawfulBasis: "CONSENT", Kid: serviceID + "/jwks/gone"},
	}
	ts.Verifier.On("Verify", mock.Anything, mock.Anything).Return(connectionPayload(t, approved), nil)
	ts.Connections.On("Check", mock.Anything, accountID, serviceID).
		Return(&dao.ConnectionCheck{AccountExists: true, ServiceExists: true, EventsURI: eventsURI}, nil)
	ts.Keys.On("KeyJSON", mock.Anything, serviceID+"/jwks/gone").Return(nil, errors.New("404"))

	err := newHandshakeService(ts).ConnectionResponse(context.Background(), handshakeMessage(t, models.ConnectionResponse))

	assert.Equal(t, http.StatusUnauthorized, serviceerror.StatusOf(err))
	assert.EqualError(t, err, "Could not retrieve key ["+serviceID+"/jwks/gone]")
}
