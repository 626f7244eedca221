package service

import (
	"context"
	"encoding/json"

	"github.com/egendata/operator/internal/dao"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/pds"
)

// AccountStore persists accounts.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, accountID string) (*models.Account, error)
}

// ServiceStore persists services and legacy clients.
type ServiceStore interface {
	Upsert(ctx context.Context, service *models.Service) error
	GetService(ctx context.Context, serviceID string) (*models.Service, error)
}

// ConnectionStore checks and creates connections.
type ConnectionStore interface {
	Check(ctx context.Context, accountID, serviceID string) (*dao.ConnectionCheck, error)
	Create(ctx context.Context, connectionID, accountID, serviceID string, approved []models.ApprovedPermission, readKeys map[string]json.RawMessage) error
}

// PermissionStore answers authorization lookups.
type PermissionStore interface {
	Read(ctx context.Context, connectionID, serviceID, domain, area string) ([]models.PermissionPDSData, error)
	Write(ctx context.Context, connectionID, serviceID, domain, area string) ([]models.PermissionPDSData, error)
}

// ConsentStore persists approved consents.
type ConsentStore interface {
	Create(ctx context.Context, record *dao.ConsentRecord) error
	Scopes(ctx context.Context, consentID, domain, area string) ([]models.ConsentScope, error)
	IsOwner(ctx context.Context, accountID, consentID string) (bool, error)
}

// ConsentRequestStore keeps pending consent requests.
type ConsentRequestStore interface {
	Create(ctx context.Context, request *models.StoredConsentRequest) (*models.ConsentRequestCreated, error)
	Get(ctx context.Context, id string) (*models.StoredConsentRequest, error)
}

// EventSender delivers events to a counterpart's events URI.
type EventSender interface {
	SendJWT(ctx context.Context, url, token string) error
	SendJSON(ctx context.Context, url string, event interface{}) error
}

// StorageOpener opens the PDS of an account.
type StorageOpener interface {
	Has(provider string) bool
	Get(ctx context.Context, provider string, credentials []byte) (*pds.FS, error)
}

// ReadKeyFetcher resolves a read key by its kid.
type ReadKeyFetcher interface {
	KeyJSON(ctx context.Context, kid string) (json.RawMessage, error)
}

// TokenVerifier verifies signed tokens nested in handshake responses.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Message, error)
}

var (
	_ AccountStore    = (*dao.AccountDAO)(nil)
	_ ServiceStore    = (*dao.ServiceDAO)(nil)
	_ ConnectionStore = (*dao.ConnectionDAO)(nil)
	_ PermissionStore = (*dao.PermissionDAO)(nil)
	_ ConsentStore    = (*dao.ConsentDAO)(nil)
	_ StorageOpener   = (*pds.Registry)(nil)
)
