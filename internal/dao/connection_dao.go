package dao

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/egendata/operator/internal/database"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/querybuilder"
)

// ConnectionCheck is what is known about an account and service pair.
type ConnectionCheck struct {
	AccountExists    bool
	ServiceExists    bool
	EventsURI        string
	ConnectionExists bool
	ConnectionID     string
}

// ConnectionDAO handles database operations for connections and their permissions
type ConnectionDAO struct {
	db *database.DB
}

// NewConnectionDAO creates a new ConnectionDAO
func NewConnectionDAO(db *database.DB) *ConnectionDAO {
	return &ConnectionDAO{db: db}
}

// Check looks up the account, the service and their connection concurrently.
func (dao *ConnectionDAO) Check(ctx context.Context, accountID, serviceID string) (*ConnectionCheck, error) {
	results, err := dao.db.Multiple(ctx, querybuilder.CheckConnection(accountID, serviceID))
	if err != nil {
		return nil, fmt.Errorf("failed to check connection: %w", err)
	}

	check := &ConnectionCheck{
		AccountExists:    len(results[0]) > 0,
		ServiceExists:    len(results[1]) > 0,
		ConnectionExists: len(results[2]) > 0,
	}
	if check.ServiceExists {
		check.EventsURI = results[1][0].String("events_uri")
	}
	if check.ConnectionExists {
		check.ConnectionID = results[2][0].String("connection_id")
	}
	return check, nil
}

// Create stores a connection with its approved permissions and the account
// keys published with them, all in one transaction.
func (dao *ConnectionDAO) Create(ctx context.Context, connectionID, accountID, serviceID string, approved []models.ApprovedPermission, readKeys map[string]json.RawMessage) error {
	permissionStmts, err := querybuilder.PermissionsInserts(connectionID, accountID, approved, readKeys)
	if err != nil {
		return err
	}

	stmts := append([]database.Statement{querybuilder.ConnectionInsert(connectionID, accountID, serviceID)}, permissionStmts...)
	if err := dao.db.Transaction(ctx, stmts); err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}
