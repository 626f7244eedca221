package service

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/pds"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/tokens"
)

// DataMap is legacy read output: domain -> area -> document text. Areas
// that could not be read map to nil.
type DataMap map[string]map[string]*string

// LegacyDataService reads and writes documents for holders of a consent
// access token.
type LegacyDataService struct {
	consents ConsentStore
	storage  StorageOpener
	access   *tokens.AccessTokens
	logger   *logrus.Logger
}

// NewLegacyDataService creates a new LegacyDataService
func NewLegacyDataService(consents ConsentStore, storage StorageOpener, access *tokens.AccessTokens, logger *logrus.Logger) *LegacyDataService {
	return &LegacyDataService{consents: consents, storage: storage, access: access, logger: logger}
}

// ConsentID returns the consent an access token was issued for.
func (s *LegacyDataService) ConsentID(accessToken string) (string, error) {
	consentID, err := s.access.Verify(accessToken)
	if err != nil {
		return "", serviceerror.Unauthorized("Invalid access token")
	}
	return consentID, nil
}

// Read returns every readable document of the consent, narrowed to domain
// and then area when given.
func (s *LegacyDataService) Read(ctx context.Context, consentID, domain, area string) (DataMap, error) {
	scopes, err := s.scopes(ctx, consentID, domain, area)
	if err != nil {
		return nil, err
	}

	var readable []models.ConsentScope
	for _, scope := range scopes {
		if scope.Read {
			readable = append(readable, scope)
		}
	}
	if len(readable) == 0 {
		return nil, serviceerror.Forbidden("No valid permission")
	}

	contents := iter.Map(readable, func(scope *models.ConsentScope) *string {
		fs, err := s.storage.Get(ctx, scope.PDSProvider, scope.PDSCredentials)
		if err != nil {
			s.logger.WithError(err).WithField("accountId", scope.AccountID).Warn("Failed to open pds")
			return nil
		}
		data, err := fs.ReadFile(ctx, pds.LegacyDataPath(scope.AccountID, scope.Domain, scope.Area))
		if err != nil {
			if !pds.IsNotExist(err) {
				s.logger.WithError(err).WithField("accountId", scope.AccountID).Warn("Failed to read document")
			}
			return nil
		}
		content := string(data)
		return &content
	})

	result := DataMap{}
	for i, scope := range readable {
		if result[scope.Domain] == nil {
			result[scope.Domain] = map[string]*string{}
		}
		result[scope.Domain][scope.Area] = contents[i]
	}
	return result, nil
}

// Write stores data for one (domain, area) of the consent. A JSON string is
// stored as its text, anything else as JSON.
func (s *LegacyDataService) Write(ctx context.Context, consentID, domain, area string, data json.RawMessage) error {
	if domain == "" || area == "" {
		return serviceerror.Validation("domain and area are required", nil)
	}

	scopes, err := s.scopes(ctx, consentID, domain, area)
	if err != nil {
		return err
	}
	scope := scopes[0]
	if !scope.Write {
		return serviceerror.Forbidden("No valid permission")
	}

	content := []byte(data)
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		content = []byte(text)
	}

	fs, err := s.storage.Get(ctx, scope.PDSProvider, scope.PDSCredentials)
	if err != nil {
		return serviceerror.Storage("Could not open pds", err)
	}
	if err := fs.OutputFile(ctx, pds.LegacyDataPath(scope.AccountID, domain, area), content); err != nil {
		return serviceerror.Storage("Could not write data", err)
	}
	return nil
}

func (s *LegacyDataService) scopes(ctx context.Context, consentID, domain, area string) ([]models.ConsentScope, error) {
	scopes, err := s.consents.Scopes(ctx, consentID, domain, area)
	if err != nil {
		return nil, serviceerror.Internal("Could not list consent scopes", err)
	}
	if len(scopes) == 0 {
		return nil, serviceerror.NotFound("Found no consents for the provided arguments")
	}
	return scopes, nil
}
