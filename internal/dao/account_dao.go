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

// AccountDAO handles database operations for accounts
type AccountDAO struct {
	db *database.DB
}

// NewAccountDAO creates a new AccountDAO
func NewAccountDAO(db *database.DB) *AccountDAO {
	return &AccountDAO{db: db}
}

// Create inserts a new account
func (dao *AccountDAO) Create(ctx context.Context, account *models.Account) error {
	stmt := querybuilder.AccountInsert(account.AccountID, account.AccountKey, account.PDSProvider, account.PDSCredentials)
	if err := dao.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account. A missing account wraps ErrNotFound.
func (dao *AccountDAO) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	stmt := querybuilder.AccountSelect(accountID)

	var account models.Account
	err := dao.db.GetContext(ctx, &account, stmt.SQL, stmt.Params...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// AccountKey returns the key the account registered with.
func (dao *AccountDAO) AccountKey(ctx context.Context, accountID string) (string, error) {
	account, err := dao.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	return account.AccountKey, nil
}
