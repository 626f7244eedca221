package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/egendata/operator/internal/database"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/querybuilder"
)

// ServiceDAO handles database operations for services and legacy clients
type ServiceDAO struct {
	db *database.DB
}

// NewServiceDAO creates a new ServiceDAO
func NewServiceDAO(db *database.DB) *ServiceDAO {
	return &ServiceDAO{db: db}
}

// Upsert inserts a service or replaces its registration
func (dao *ServiceDAO) Upsert(ctx context.Context, service *models.Service) error {
	if err := dao.db.Exec(ctx, querybuilder.ServiceUpsert(service)); err != nil {
		return fmt.Errorf("failed to upsert service: %w", err)
	}
	return nil
}

// GetByID retrieves a service. A missing service wraps ErrNotFound.
func (dao *ServiceDAO) GetByID(ctx context.Context, serviceID string) (*models.Service, error) {
	stmt := querybuilder.ServiceSelect(serviceID)

	var service models.Service
	err := dao.db.GetContext(ctx, &service, stmt.SQL, stmt.Params...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("service %s: %w", serviceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	return &service, nil
}

// GetService returns the service or nil when it is not registered.
func (dao *ServiceDAO) GetService(ctx context.Context, serviceID string) (*models.Service, error) {
	service, err := dao.GetByID(ctx, serviceID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return service, err
}
