package dao

import (
	"context"
	"fmt"

	"github.com/egendata/operator/internal/database"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/querybuilder"
)

// PermissionDAO answers authorization lookups
type PermissionDAO struct {
	db *database.DB
}

// NewPermissionDAO creates a new PermissionDAO
func NewPermissionDAO(db *database.DB) *PermissionDAO {
	return &PermissionDAO{db: db}
}

// Read returns the active READ grants of a connection for domain, and area
// unless it is empty.
func (dao *PermissionDAO) Read(ctx context.Context, connectionID, serviceID, domain, area string) ([]models.PermissionPDSData, error) {
	return dao.lookup(ctx, querybuilder.ReadPermission(connectionID, serviceID, domain, area))
}

// Write returns the active WRITE grants of a connection for one scope.
func (dao *PermissionDAO) Write(ctx context.Context, connectionID, serviceID, domain, area string) ([]models.PermissionPDSData, error) {
	return dao.lookup(ctx, querybuilder.WritePermission(connectionID, serviceID, domain, area))
}

func (dao *PermissionDAO) lookup(ctx context.Context, stmt database.Statement) ([]models.PermissionPDSData, error) {
	var rows []models.PermissionPDSData
	if err := dao.db.SelectContext(ctx, &rows, stmt.SQL, stmt.Params...); err != nil {
		return nil, fmt.Errorf("failed to look up permissions: %w", err)
	}
	return rows, nil
}
