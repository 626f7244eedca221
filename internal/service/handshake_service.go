package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"

	"github.com/egendata/operator/internal/dao"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/tokens"
)

// HandshakeService completes login and connection handshakes between an
// account and a service.
type HandshakeService struct {
	connections ConnectionStore
	verifier    TokenVerifier
	keys        ReadKeyFetcher
	issuer      *tokens.Issuer
	events      EventSender
	logger      *logrus.Logger
}

// NewHandshakeService creates a new HandshakeService
func NewHandshakeService(
	connections ConnectionStore,
	verifier TokenVerifier,
	keys ReadKeyFetcher,
	issuer *tokens.Issuer,
	events EventSender,
	logger *logrus.Logger,
) *HandshakeService {
	return &HandshakeService{
		connections: connections,
		verifier:    verifier,
		keys:        keys,
		issuer:      issuer,
		events:      events,
		logger:      logger,
	}
}

// LoginResponse handles LOGIN_RESPONSE: the account's signed login is
// forwarded to a connected service as a LOGIN_EVENT.
func (s *HandshakeService) LoginResponse(ctx context.Context, msg *models.Message) error {
	var payload models.HandshakeResponsePayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	inner, err := s.verifier.Verify(ctx, payload.Payload)
	if err != nil {
		return err
	}
	var login models.LoginPayload
	if err := inner.Decode(&login); err != nil {
		return serviceerror.Validation("Invalid LOGIN payload", err)
	}

	check, err := s.check(ctx, payload.Iss, login.Aud)
	if err != nil {
		return err
	}
	if !check.ConnectionExists {
		return serviceerror.NotFound("No connection exists")
	}

	token, err := s.issuer.LoginEvent(login.Aud, payload.Payload)
	if err != nil {
		return serviceerror.Internal("Could not create login event", err)
	}
	return s.send(ctx, check.EventsURI, token)
}

// ConnectionResponse handles CONNECTION_RESPONSE. The connection and its
// permissions are committed before the service is told about them.
func (s *HandshakeService) ConnectionResponse(ctx context.Context, msg *models.Message) error {
	var payload models.HandshakeResponsePayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	inner, err := s.verifier.Verify(ctx, payload.Payload)
	if err != nil {
		s.logger.WithError(err).WithField("iss", payload.Iss).Warn("Connection payload did not verify")
		return serviceerror.Forbidden("Could not verify CONNECTION_RESPONSE payload")
	}
	var connection models.ConnectionPayload
	if err := inner.Decode(&connection); err != nil {
		return serviceerror.Validation("Invalid CONNECTION payload", err)
	}
	if connection.Sub == "" {
		return serviceerror.Validation("CONNECTION payload has no sub", nil)
	}

	var approved []models.ApprovedPermission
	if connection.Permissions != nil {
		approved = connection.Permissions.Approved
	}
	if err := checkApproved(approved); err != nil {
		return err
	}

	check, err := s.check(ctx, payload.Iss, connection.Aud)
	if err != nil {
		return err
	}
	if check.ConnectionExists {
		return serviceerror.Conflict("Connection already exists")
	}

	readKeys, err := s.readKeys(ctx, approved)
	if err != nil {
		return err
	}

	if err := s.connections.Create(ctx, connection.Sub, payload.Iss, connection.Aud, approved, readKeys); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"connectionId": connection.Sub,
			"accountId":    payload.Iss,
			"serviceId":    connection.Aud,
		}).Error("Failed to store connection")
		return serviceerror.Transaction("Could not create connection", err)
	}

	s.logger.WithFields(logrus.Fields{
		"connectionId": connection.Sub,
		"serviceId":    connection.Aud,
		"permissions":  len(approved),
	}).Info("Connection created")

	token, err := s.issuer.ConnectionEvent(connection.Aud, payload.Payload)
	if err != nil {
		return serviceerror.Internal("Could not create connection event", err)
	}
	return s.send(ctx, check.EventsURI, token)
}

func (s *HandshakeService) check(ctx context.Context, accountID, serviceID string) (*dao.ConnectionCheck, error) {
	check, err := s.connections.Check(ctx, accountID, serviceID)
	if err != nil {
		return nil, serviceerror.Internal("Could not check connection", err)
	}
	if !check.AccountExists {
		return nil, serviceerror.NotFound(fmt.Sprintf("No such account %s", accountID))
	}
	if !check.ServiceExists {
		return nil, serviceerror.NotFound(fmt.Sprintf("No such service %s", serviceID))
	}
	return check, nil
}

func checkApproved(approved []models.ApprovedPermission) error {
	for _, p := range approved {
		t := models.PermissionType(strings.ToUpper(string(p.Type)))
		if !t.Valid() {
			return serviceerror.Validation(fmt.Sprintf("Unknown permission type %s", p.Type), nil)
		}
		if t == models.PermissionRead && p.Kid == "" {
			return serviceerror.Validation(fmt.Sprintf("READ permission %s has no kid", p.ID), nil)
		}
	}
	return nil
}

// readKeys fetches the key of every approved READ permission, once per kid.
func (s *HandshakeService) readKeys(ctx context.Context, approved []models.ApprovedPermission) (map[string]json.RawMessage, error) {
	seen := map[string]bool{}
	var kids []string
	for _, p := range approved {
		if models.PermissionType(strings.ToUpper(string(p.Type))) != models.PermissionRead || seen[p.Kid] {
			continue
		}
		seen[p.Kid] = true
		kids = append(kids, p.Kid)
	}

	type fetched struct {
		key json.RawMessage
		err error
	}
	results := iter.Map(kids, func(kid *string) fetched {
		key, err := s.keys.KeyJSON(ctx, *kid)
		return fetched{key: key, err: err}
	})

	readKeys := make(map[string]json.RawMessage, len(kids))
	for i, kid := range kids {
		if results[i].err != nil {
			s.logger.WithError(results[i].err).WithField("kid", kid).Warn("Could not fetch read key")
			return nil, serviceerror.Unauthorized(fmt.Sprintf("Could not retrieve key [%s]", kid))
		}
		readKeys[kid] = results[i].key
	}
	return readKeys, nil
}

func (s *HandshakeService) send(ctx context.Context, url, token string) error {
	if err := s.events.SendJWT(ctx, url, token); err != nil {
		s.logger.WithError(err).WithField("url", url).Error("Failed to deliver event")
		return serviceerror.Internal(fmt.Sprintf("Could not send token to %s", url), err)
	}
	return nil
}
