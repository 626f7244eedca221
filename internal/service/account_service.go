package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/dao"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
	"github.com/egendata/operator/internal/tokens"
	"github.com/egendata/operator/pkg/utils"
)

// AccountService handles account registration and account logins
type AccountService struct {
	accounts AccountStore
	services ServiceStore
	consents ConsentStore
	storage  StorageOpener
	access   *tokens.AccessTokens
	events   EventSender
	logger   *logrus.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(
	accounts AccountStore,
	services ServiceStore,
	consents ConsentStore,
	storage StorageOpener,
	access *tokens.AccessTokens,
	events EventSender,
	logger *logrus.Logger,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		services: services,
		consents: consents,
		storage:  storage,
		access:   access,
		events:   events,
		logger:   logger,
	}
}

// pdsCredentials is how an access token is kept on the account row.
func pdsCredentials(accessToken string) ([]byte, error) {
	creds, err := json.Marshal(map[string]string{"apiKey": accessToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode pds credentials: %w", err)
	}
	return creds, nil
}

// RegisterAccount handles ACCOUNT_REGISTRATION. The account id is the
// message iss and the account key is the jwk the message was signed with.
func (s *AccountService) RegisterAccount(ctx context.Context, msg *models.Message) error {
	var payload models.AccountRegistrationPayload
	if err := decode(msg, &payload); err != nil {
		return err
	}

	jwk := msg.HeaderJWK()
	if jwk == nil {
		return serviceerror.Validation("Missing jwk header", nil)
	}

	return s.create(ctx, payload.Iss, string(jwk), payload.PDS)
}

// CreateAccount handles a signed account creation and returns the new id.
func (s *AccountService) CreateAccount(ctx context.Context, req *models.AccountCreateRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	key, err := base64.StdEncoding.DecodeString(req.AccountKey)
	if err != nil {
		return "", serviceerror.Validation("accountKey is not base64", err)
	}

	accountID := utils.GenerateID()
	if err := s.create(ctx, accountID, string(key), req.PDS); err != nil {
		return "", err
	}
	return accountID, nil
}

func (s *AccountService) create(ctx context.Context, accountID, accountKey string, reg models.PDSRegistration) error {
	if !s.storage.Has(reg.Provider) {
		return serviceerror.Validation(fmt.Sprintf("Unknown pds provider %s", reg.Provider), nil)
	}

	creds, err := pdsCredentials(reg.AccessToken)
	if err != nil {
		return serviceerror.Internal("Could not register account", err)
	}

	account := &models.Account{
		AccountID:      accountID,
		AccountKey:     accountKey,
		PDSProvider:    reg.Provider,
		PDSCredentials: creds,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if isUniqueViolation(err) {
			return serviceerror.Conflict(fmt.Sprintf("Account %s already exists", accountID))
		}
		s.logger.WithError(err).WithField("accountId", accountID).Error("Failed to create account")
		return serviceerror.Internal("Could not register account", err)
	}

	s.logger.WithFields(logrus.Fields{
		"accountId": accountID,
		"provider":  reg.Provider,
	}).Info("Account registered")
	return nil
}

// GetAccount returns the public view of an account
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*models.AccountView, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, serviceerror.NotFound("Account not found")
		}
		return nil, serviceerror.Internal("Could not get account", err)
	}

	return &models.AccountView{
		ID:         account.AccountID,
		AccountKey: account.AccountKey,
		PDS:        models.PDSInfo{Provider: account.PDSProvider},
	}, nil
}

// Login approves a client login for an account that owns the named
// consent. The client receives a LOGIN_APPROVED event carrying an access
// token for the consent.
func (s *AccountService) Login(ctx context.Context, accountID string, req *models.AccountLoginRequest) error {
	if err := validate(req); err != nil {
		return err
	}

	owner, err := s.consents.IsOwner(ctx, accountID, req.ConsentID)
	if err != nil {
		return serviceerror.Internal("Could not check consent", err)
	}
	if !owner {
		return serviceerror.Forbidden("Login denied. Consent does not belong to user")
	}

	client, err := s.services.GetService(ctx, req.ClientID)
	if err != nil {
		return serviceerror.Internal("Could not look up client", err)
	}
	if client == nil {
		return serviceerror.NotFound(fmt.Sprintf("No such client %s", req.ClientID))
	}

	accessToken, err := s.access.Create(req.ConsentID)
	if err != nil {
		return serviceerror.Internal("Could not create access token", err)
	}

	event := models.LoginApprovedEvent{
		Type:        models.LoginApproved,
		AccessToken: accessToken,
		Payload:     *req,
	}
	if err := s.events.SendJSON(ctx, client.EventsURI, event); err != nil {
		s.logger.WithError(err).WithField("clientId", req.ClientID).Error("Failed to deliver login event")
		return serviceerror.Internal(fmt.Sprintf("Could not send event to %s", client.EventsURI), err)
	}
	return nil
}
