package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/cache"
	"github.com/egendata/operator/internal/dao"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/tokens"
	"github.com/egendata/operator/pkg/utils"
)

// ConsentService handles consent requests from clients and their approval
// by accounts.
type ConsentService struct {
	requests ConsentRequestStore
	consents ConsentStore
	services ServiceStore
	access   *tokens.AccessTokens
	events   EventSender
	logger   *logrus.Logger
	newID    func() string
}

// NewConsentService creates a new ConsentService
func NewConsentService(
	requests ConsentRequestStore,
	consents ConsentStore,
	services ServiceStore,
	access *tokens.AccessTokens,
	events EventSender,
	logger *logrus.Logger,
) *ConsentService {
	return &ConsentService{
		requests: requests,
		consents: consents,
		services: services,
		access:   access,
		events:   events,
		logger:   logger,
		newID:    utils.GenerateID,
	}
}

// CreateRequest stores a signed consent request until an account answers
// it. Only registered clients may ask for consent.
func (s *ConsentService) CreateRequest(ctx context.Context, data json.RawMessage, signature models.SignatureInfo) (*models.ConsentRequestCreated, error) {
	if signature.Client == nil {
		return nil, serviceerror.Internal("Requesting consent before client is registered is not allowed", nil)
	}

	var body models.ConsentRequestBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, serviceerror.Validation("Invalid consent request", err)
	}
	if err := validate(&body); err != nil {
		return nil, err
	}

	created, err := s.requests.Create(ctx, &models.StoredConsentRequest{Data: data, Signature: signature})
	if err != nil {
		s.logger.WithError(err).WithField("clientId", body.ClientID).Error("Failed to store consent request")
		return nil, serviceerror.Internal("Could not store consent request", err)
	}
	return created, nil
}

// GetRequest returns a pending consent request with its signer.
func (s *ConsentService) GetRequest(ctx context.Context, id string) (*models.ConsentRequestView, error) {
	stored, err := s.requests.Get(ctx, id)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, serviceerror.NotFound("Consent request not found")
		}
		return nil, serviceerror.Internal("Could not get consent request", err)
	}

	view := &models.ConsentRequestView{
		Data: stored.Data,
		Signature: models.SignatureInfo{
			Alg:  stored.Signature.Alg,
			Kid:  stored.Signature.Kid,
			Data: stored.Signature.Data,
		},
	}
	if client := stored.Signature.Client; client != nil {
		view.Client = models.ClientInfo{
			JWKSURL:     client.JWKSURL,
			DisplayName: client.DisplayName,
			Description: client.Description,
		}
	}
	return view, nil
}

// Approve materializes an approved consent and sends the client a
// CONSENT_APPROVED event with an access token for it.
func (s *ConsentService) Approve(ctx context.Context, req *models.ConsentApprovalRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	encryptionKey, err := base64.StdEncoding.DecodeString(req.ConsentEncryptionKey)
	if err != nil {
		return "", serviceerror.Validation("consentEncryptionKey is not base64", err)
	}

	client, err := s.services.GetService(ctx, req.ClientID)
	if err != nil {
		return "", serviceerror.Internal("Could not look up client", err)
	}
	if client == nil {
		return "", serviceerror.NotFound(fmt.Sprintf("No such client %s", req.ClientID))
	}

	consentID := s.newID()
	scopeIDs := make([]string, len(req.Scope))
	for i := range scopeIDs {
		scopeIDs[i] = s.newID()
	}

	record := &dao.ConsentRecord{
		ConsentID:     consentID,
		Request:       req,
		ScopeIDs:      scopeIDs,
		EncryptionKey: string(encryptionKey),
	}
	if err := s.consents.Create(ctx, record); err != nil {
		s.logger.WithError(err).WithField("consentRequestId", req.ConsentRequestID).Error("Failed to store consent")
		return "", serviceerror.Transaction("Could not store consent", err)
	}

	accessToken, err := s.access.Create(consentID)
	if err != nil {
		return "", serviceerror.Internal("Could not create access token", err)
	}

	event := models.ConsentApprovedEvent{
		Type:    models.ConsentApproved,
		Payload: approvedPayload(consentID, accessToken, req),
	}
	if err := s.events.SendJSON(ctx, client.EventsURI, event); err != nil {
		s.logger.WithError(err).WithField("clientId", req.ClientID).Error("Failed to deliver consent event")
		return "", serviceerror.Internal("Could not post consent to client", err)
	}

	s.logger.WithFields(logrus.Fields{
		"consentId": consentID,
		"clientId":  req.ClientID,
		"scopes":    len(req.Scope),
	}).Info("Consent approved")
	return consentID, nil
}

func approvedPayload(consentID, accessToken string, req *models.ConsentApprovalRequest) models.ConsentApprovedPayload {
	accountKeyID := fmt.Sprintf("mydata://%s/account_key", consentID)

	scope := make([]models.ConsentScopeEntry, len(req.Scope))
	for i, entry := range req.Scope {
		entry.AccessKeyIDs = []string{accountKeyID, req.ConsentEncryptionKeyID}
		scope[i] = entry
	}

	return models.ConsentApprovedPayload{
		ConsentRequestID: req.ConsentRequestID,
		ConsentID:        consentID,
		AccessToken:      accessToken,
		Scope:            scope,
		Keys: map[string]string{
			accountKeyID:               req.AccountKey,
			req.ConsentEncryptionKeyID: req.ConsentEncryptionKey,
		},
	}
}
