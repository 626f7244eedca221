package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Statement is parameterized SQL with positional ($n) params.
type Statement struct {
	SQL    string
	Params []interface{}
}

// NewStatement builds a Statement.
func NewStatement(sql string, params ...interface{}) Statement {
	return Statement{SQL: sql, Params: params}
}

// Row is one result row keyed by column name. bytea and text columns are
// returned as string.
type Row map[string]interface{}

// String returns the column as a string, or "" when absent or NULL.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Rows is the result set of one Statement.
type Rows []Row

// Query runs a single statement and returns its rows.
func (db *DB) Query(ctx context.Context, stmt Statement) (Rows, error) {
	rows, err := db.QueryxContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	result := Rows{}
	for rows.Next() {
		row := Row{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return result, nil
}

// Exec runs a single statement that returns no rows.
func (db *DB) Exec(ctx context.Context, stmt Statement) error {
	if _, err := db.ExecContext(ctx, stmt.SQL, stmt.Params...); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

// Multiple runs independent read-only statements concurrently outside any
// transaction. Results are returned in input order; the first error wins.
func (db *DB) Multiple(ctx context.Context, stmts []Statement) ([]Rows, error) {
	results := make([]Rows, len(stmts))

	g, gctx := errgroup.WithContext(ctx)
	for i, stmt := range stmts {
		i, stmt := i, stmt
		g.Go(func() error {
			rows, err := db.Query(gctx, stmt)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Transaction executes stmts sequentially between BEGIN and COMMIT. The
// first failing statement rolls the whole batch back and is returned.
func (db *DB) Transaction(ctx context.Context, stmts []Statement) error {
	return db.WithTransaction(ctx, func(tx *Transaction) error {
		for i, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt.SQL, stmt.Params...); err != nil {
				db.logger.WithError(err).WithFields(logrus.Fields{
					"statement": i,
					"total":     len(stmts),
				}).Error("Statement failed, rolling back")
				return fmt.Errorf("failed to execute statement %d: %w", i, err)
			}
		}
		return nil
	})
}
