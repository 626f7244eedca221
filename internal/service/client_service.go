package service

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/pkg/utils"
)

// ClientService registers services. Legacy clients are services too.
type ClientService struct {
	services ServiceStore
	unsafe   bool
	logger   *logrus.Logger
}

// NewClientService creates a new ClientService. With unsafe set plain http
// URIs are accepted.
func NewClientService(services ServiceStore, unsafe bool, logger *logrus.Logger) *ClientService {
	return &ClientService{services: services, unsafe: unsafe, logger: logger}
}

// RegisterService handles SERVICE_REGISTRATION. The service key is the jwk
// the message was signed with.
func (s *ClientService) RegisterService(ctx context.Context, msg *models.Message) error {
	var payload models.ServiceRegistrationPayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	jwk := msg.HeaderJWK()
	if jwk == nil {
		return serviceerror.Validation("Missing jwk header", nil)
	}
	if err := s.checkScheme(payload.Iss, payload.JWKSURI, payload.EventsURI); err != nil {
		return err
	}

	return s.upsert(ctx, &models.Service{
		ServiceID:   payload.Iss,
		ServiceKey:  string(jwk),
		DisplayName: payload.DisplayName,
		Description: nullString(payload.Description),
		IconURI:     nullString(payload.IconURI),
		JWKSURI:     nullString(payload.JWKSURI),
		EventsURI:   payload.EventsURI,
	})
}

// RegisterClient handles a signed client registration. clientKey is the
// PEM the envelope was verified with.
func (s *ClientService) RegisterClient(ctx context.Context, req *models.ClientRegistrationRequest, clientKey string) (*models.ClientRegistrationResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if err := s.checkScheme(req.ClientID, req.JWKSURL, req.EventsURL); err != nil {
		return nil, err
	}

	err := s.upsert(ctx, &models.Service{
		ServiceID:   req.ClientID,
		ServiceKey:  clientKey,
		DisplayName: req.DisplayName,
		Description: nullString(req.Description),
		JWKSURI:     nullString(req.JWKSURL),
		EventsURI:   req.EventsURL,
	})
	if err != nil {
		return nil, err
	}

	return &models.ClientRegistrationResponse{
		ClientID:    req.ClientID,
		DisplayName: req.DisplayName,
		Description: req.Description,
		EventsURL:   req.EventsURL,
		JWKSURL:     req.JWKSURL,
		ClientKey:   clientKey,
	}, nil
}

func (s *ClientService) upsert(ctx context.Context, service *models.Service) error {
	if err := s.services.Upsert(ctx, service); err != nil {
		s.logger.WithError(err).WithField("serviceId", service.ServiceID).Error("Failed to register service")
		return serviceerror.Internal("Could not register service", err)
	}
	s.logger.WithField("serviceId", service.ServiceID).Info("Service registered")
	return nil
}

func (s *ClientService) checkScheme(uris ...string) error {
	if s.unsafe {
		return nil
	}
	for _, uri := range uris {
		if utils.IsInsecureURI(uri) {
			return serviceerror.Forbidden("Unsafe (http) is not allowed")
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
