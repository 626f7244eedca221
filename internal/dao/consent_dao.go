package dao

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/egendata/operator/internal/database"
	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/querybuilder"
)

// ConsentRecord is everything stored when an account approves a consent request.
type ConsentRecord struct {
	ConsentID     string
	Request       *models.ConsentApprovalRequest
	ScopeIDs      []string
	EncryptionKey string
}

// ConsentDAO handles database operations for approved consents
type ConsentDAO struct {
	db *database.DB
}

// NewConsentDAO creates a new ConsentDAO
func NewConsentDAO(db *database.DB) *ConsentDAO {
	return &ConsentDAO{db: db}
}

// Create stores the consent, its scopes, the encryption key and the scope
// key links in one transaction.
func (dao *ConsentDAO) Create(ctx context.Context, record *ConsentRecord) error {
	req := record.Request
	if len(record.ScopeIDs) != len(req.Scope) {
		return fmt.Errorf("expected %d scope ids, got %d", len(req.Scope), len(record.ScopeIDs))
	}

	response, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal consent: %w", err)
	}

	stmts := []database.Statement{
		querybuilder.ConsentRequestInsert(req.ConsentRequestID, record.ConsentID, req.AccountID, req.ClientID, response),
	}
	for i, entry := range req.Scope {
		stmts = append(stmts, querybuilder.ScopeInsert(record.ScopeIDs[i], record.ConsentID, entry))
	}
	stmts = append(stmts, querybuilder.EncryptionKeyInsert(req.ConsentEncryptionKeyID, record.EncryptionKey))
	for _, scopeID := range record.ScopeIDs {
		stmts = append(stmts, querybuilder.ScopeKeyInsert(scopeID, req.ConsentEncryptionKeyID))
	}

	if err := dao.db.Transaction(ctx, stmts); err != nil {
		return fmt.Errorf("failed to create consent: %w", err)
	}
	return nil
}

// Scopes lists a consent's scopes, optionally narrowed to domain and area.
func (dao *ConsentDAO) Scopes(ctx context.Context, consentID, domain, area string) ([]models.ConsentScope, error) {
	stmt := querybuilder.ConsentScopes(consentID, domain, area)

	var scopes []models.ConsentScope
	if err := dao.db.SelectContext(ctx, &scopes, stmt.SQL, stmt.Params...); err != nil {
		return nil, fmt.Errorf("failed to list consent scopes: %w", err)
	}
	return scopes, nil
}

// IsOwner reports whether consentID belongs to accountID.
func (dao *ConsentDAO) IsOwner(ctx context.Context, accountID, consentID string) (bool, error) {
	stmt := querybuilder.ConsentOwnership(accountID, consentID)

	var count int
	if err := dao.db.GetContext(ctx, &count, stmt.SQL, stmt.Params...); err != nil {
		return false, fmt.Errorf("failed to check consent ownership: %w", err)
	}
	return count > 0, nil
}
