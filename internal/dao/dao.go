// Package dao reads and writes the operator's Postgres tables.
package dao

import "errors"

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")
