package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/egendata/operator/internal/dao"
	"github.com/egendata/operator/internal/models"
)

// MockAccountStore is a mock implementation of AccountStore
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) Create(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountStore) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

// MockServiceStore is a mock implementation of ServiceStore
type MockServiceStore struct {
	mock.Mock
}

func (m *MockServiceStore) Upsert(ctx context.Context, service *models.Service) error {
	args := m.Called(ctx, service)
	return args.Error(0)
}

func (m *MockServiceStore) GetService(ctx context.Context, serviceID string) (*models.Service, error) {
	args := m.Called(ctx, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

// MockConnectionStore is a mock implementation of ConnectionStore
type MockConnectionStore struct {
	mock.Mock
}

func (m *MockConnectionStore) Check(ctx context.Context, accountID, serviceID string) (*dao.ConnectionCheck, error) {
	args := m.Called(ctx, accountID, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dao.ConnectionCheck), args.Error(1)
}

func (m *MockConnectionStore) Create(ctx context.Context, connectionID, accountID, serviceID string, approved []models.ApprovedPermission, readKeys map[string]json.RawMessage) error {
	args := m.Called(ctx, connectionID, accountID, serviceID, approved, readKeys)
	return args.Error(0)
}

// MockPermissionStore is a mock implementation of PermissionStore
type MockPermissionStore struct {
	mock.Mock
}

func (m *MockPermissionStore) Read(ctx context.Context, connectionID, serviceID, domain, area string) ([]models.PermissionPDSData, error) {
	args := m.Called(ctx, connectionID, serviceID, domain, area)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PermissionPDSData), args.Error(1)
}

func (m *MockPermissionStore) Write(ctx context.Context, connectionID, serviceID, domain, area string) ([]models.PermissionPDSData, error) {
	args := m.Called(ctx, connectionID, serviceID, domain, area)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PermissionPDSData), args.Error(1)
}

// MockConsentStore is a mock implementation of ConsentStore
type MockConsentStore struct {
	mock.Mock
}

func (m *MockConsentStore) Create(ctx context.Context, record *dao.ConsentRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockConsentStore) Scopes(ctx context.Context, consentID, domain, area string) ([]models.ConsentScope, error) {
	args := m.Called(ctx, consentID, domain, area)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConsentScope), args.Error(1)
}

func (m *MockConsentStore) IsOwner(ctx context.Context, accountID, consentID string) (bool, error) {
	args := m.Called(ctx, accountID, consentID)
	return args.Bool(0), args.Error(1)
}

// MockConsentRequestStore is a mock implementation of ConsentRequestStore
type MockConsentRequestStore struct {
	mock.Mock
}

func (m *MockConsentRequestStore) Create(ctx context.Context, request *models.StoredConsentRequest) (*models.ConsentRequestCreated, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentRequestCreated), args.Error(1)
}

func (m *MockConsentRequestStore) Get(ctx context.Context, id string) (*models.StoredConsentRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StoredConsentRequest), args.Error(1)
}
