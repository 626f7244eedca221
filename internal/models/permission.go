package models

import (
	"database/sql"
	"time"
)

// PermissionType is the operation a permission grants.
type PermissionType string

const (
	PermissionRead    PermissionType = "READ"
	PermissionWrite   PermissionType = "WRITE"
	PermissionPublish PermissionType = "PUBLISH"
)

// Valid reports whether t is one of the known permission types.
func (t PermissionType) Valid() bool {
	switch t {
	case PermissionRead, PermissionWrite, PermissionPublish:
		return true
	}
	return false
}

// Connection is an established account to service relationship.
type Connection struct {
	ConnectionID string    `db:"connection_id" json:"connectionId"`
	AccountID    string    `db:"account_id" json:"accountId"`
	ServiceID    string    `db:"service_id" json:"serviceId"`
	Created      time.Time `db:"created" json:"created"`
}

// Permission grants one operation on one (domain, area) for one connection.
type Permission struct {
	ID           string         `db:"id"`
	ConnectionID string         `db:"connection_id"`
	Domain       string         `db:"domain"`
	Area         string         `db:"area"`
	Type         PermissionType `db:"type"`
	Description  sql.NullString `db:"description"`
	Purpose      sql.NullString `db:"purpose"`
	LawfulBasis  string         `db:"lawful_basis"`
	ReadKey      sql.NullString `db:"read_key"`
	ApprovedAt   sql.NullTime   `db:"approved_at"`
	RejectedAt   sql.NullTime   `db:"rejected_at"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
	RevokedAt    sql.NullTime   `db:"revoked_at"`
	DataPath     sql.NullString `db:"data_path"`
}

// PermissionPDSData is a row of the read/write authorization lookup.
type PermissionPDSData struct {
	Domain         string         `db:"domain"`
	Area           string         `db:"area"`
	DataPath       sql.NullString `db:"data_path"`
	PDSProvider    string         `db:"pds_provider"`
	PDSCredentials []byte         `db:"pds_credentials"`
}
