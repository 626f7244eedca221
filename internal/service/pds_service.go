package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/pds"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/pkg/utils"
)

// Authorizer is a provider that turns an OAuth code into credentials.
type Authorizer interface {
	Authorize(ctx context.Context, code string) ([]byte, error)
}

// PDSService exposes the configured PDS providers.
type PDSService struct {
	registry *pds.Registry
	logger   *logrus.Logger
}

// NewPDSService creates a new PDSService
func NewPDSService(registry *pds.Registry, logger *logrus.Logger) *PDSService {
	return &PDSService{registry: registry, logger: logger}
}

// Providers lists the provider descriptions.
func (s *PDSService) Providers() []pds.Description {
	return s.registry.Providers()
}

// Authorize exchanges an OAuth code with provider and returns the
// credentials an account registers with.
func (s *PDSService) Authorize(ctx context.Context, provider, code string) (json.RawMessage, error) {
	if err := utils.ValidateRequired("code", code); err != nil {
		return nil, serviceerror.Validation(err.Error(), nil)
	}

	p, ok := s.registry.Provider(provider)
	if !ok {
		return nil, serviceerror.NotFound(fmt.Sprintf("Unknown pds provider %s", provider))
	}
	authorizer, ok := p.(Authorizer)
	if !ok {
		return nil, serviceerror.Validation(fmt.Sprintf("Provider %s does not use OAuth", provider), nil)
	}

	creds, err := authorizer.Authorize(ctx, code)
	if err != nil {
		s.logger.WithError(err).WithField("provider", provider).Warn("OAuth code exchange failed")
		return nil, serviceerror.Unauthorized("Could not authorize with " + provider)
	}
	return creds, nil
}
