// Package querybuilder produces the parameterized SQL the operator runs
// against Postgres. Builders never touch the database; callers execute the
// statements with database.DB Query, Multiple or Transaction.
package querybuilder

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/egendata/operator/internal/database"
	"github.com/egendata/operator/internal/models"
)

// activePermission is the authorization invariant shared by every lookup.
const activePermission = `p.approved_at IS NOT NULL
    AND p.rejected_at IS NULL
    AND p.revoked_at IS NULL
    AND (p.expires_at IS NULL OR p.expires_at > NOW())`

// CheckConnection returns three independent reads: the account, the
// service's events URI and any existing connection between them.
func CheckConnection(accountID, serviceID string) []database.Statement {
	return []database.Statement{
		database.NewStatement(`SELECT account_key FROM accounts WHERE account_id = $1`, accountID),
		database.NewStatement(`SELECT events_uri FROM services WHERE service_id = $1`, serviceID),
		database.NewStatement(`SELECT * FROM connections WHERE account_id = $1 AND service_id = $2`, accountID, serviceID),
	}
}

// ConnectionInsert creates a connection row.
func ConnectionInsert(connectionID, accountID, serviceID string) database.Statement {
	return database.NewStatement(`INSERT INTO connections(
      connection_id, account_id, service_id
    ) VALUES($1, $2, $3)`, connectionID, accountID, serviceID)
}

// AccountInsert creates an account row.
func AccountInsert(accountID, accountKey, pdsProvider string, pdsCredentials []byte) database.Statement {
	return database.NewStatement(`INSERT INTO accounts(
      account_id, account_key, pds_provider, pds_credentials
    ) VALUES($1, $2, $3, $4)`, accountID, accountKey, pdsProvider, pdsCredentials)
}

// AccountSelect reads one account.
func AccountSelect(accountID string) database.Statement {
	return database.NewStatement(`SELECT account_id, account_key, pds_provider, pds_credentials, created
    FROM accounts WHERE account_id = $1`, accountID)
}

// ServiceUpsert inserts a service or replaces every mutable column.
func ServiceUpsert(s *models.Service) database.Statement {
	return database.NewStatement(`INSERT INTO services(
      service_id,
      service_key,
      display_name,
      description,
      icon_uri,
      jwks_uri,
      events_uri
    ) VALUES($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT (service_id) DO
    UPDATE SET
      service_key = $2,
      display_name = $3,
      description = $4,
      icon_uri = $5,
      jwks_uri = $6,
      events_uri = $7`,
		s.ServiceID,
		s.ServiceKey,
		s.DisplayName,
		nullable(s.Description.String),
		nullable(s.IconURI.String),
		nullable(s.JWKSURI.String),
		s.EventsURI,
	)
}

// ServiceSelect reads one service.
func ServiceSelect(serviceID string) database.Statement {
	return database.NewStatement(`SELECT service_id, service_key, display_name, description, icon_uri, jwks_uri, events_uri, created
    FROM services WHERE service_id = $1`, serviceID)
}

// PermissionsInserts derives the rows of an approved connection: first the
// account keys published with WRITE permissions, then one permission per
// approved grant. READ grants get the read key resolved by their kid from
// readKeys; a READ grant whose key is missing is an error.
func PermissionsInserts(connectionID, accountID string, approved []models.ApprovedPermission, readKeys map[string]json.RawMessage) ([]database.Statement, error) {
	var keyInserts, permissionInserts []database.Statement

	for _, p := range approved {
		permissionType := models.PermissionType(strings.ToUpper(string(p.Type)))
		if !permissionType.Valid() {
			return nil, fmt.Errorf("unknown permission type %q", p.Type)
		}

		if permissionType == models.PermissionWrite && p.JWKS != nil {
			for _, key := range p.JWKS.Keys {
				kid, _ := key["kid"].(string)
				if !inAccountNamespace(kid, accountID, p.Domain) {
					continue
				}
				keyJSON, err := json.Marshal(key)
				if err != nil {
					return nil, fmt.Errorf("failed to encode account key %s: %w", kid, err)
				}
				keyInserts = append(keyInserts, AccountKeyInsert(kid, accountID, p.Domain, p.Area, string(keyJSON)))
			}
		}

		var readKey interface{}
		if permissionType == models.PermissionRead {
			key, ok := readKeys[p.Kid]
			if !ok {
				return nil, fmt.Errorf("no read key for kid %q", p.Kid)
			}
			readKey = string(key)
		}

		permissionInserts = append(permissionInserts, database.NewStatement(`INSERT INTO permissions(
      id,
      connection_id,
      "domain",
      area,
      type,
      description,
      purpose,
      lawful_basis,
      read_key,
      data_path,
      approved_at
    ) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
			p.ID,
			connectionID,
			p.Domain,
			p.Area,
			string(permissionType),
			stringOrNil(p.Description),
			stringOrNil(p.Purpose),
			p.LawfulBasis,
			readKey,
			stringOrNil(p.DataPath),
		))
	}

	return append(keyInserts, permissionInserts...), nil
}

// AccountKeyInsert caches a key an account published for a scope.
func AccountKeyInsert(kid, accountID, domain, area, readKey string) database.Statement {
	return database.NewStatement(`INSERT INTO account_keys(
      account_key_id, account_id, "domain", area, read_key
    ) VALUES($1, $2, $3, $4, $5)
    ON CONFLICT DO NOTHING`, kid, accountID, domain, area, readKey)
}

// ReadPermission looks up active READ grants. An empty area matches every
// area of the domain.
func ReadPermission(connectionID, serviceID, domain, area string) database.Statement {
	return permissionLookup(models.PermissionRead, connectionID, serviceID, domain, area)
}

// WritePermission looks up the active WRITE grant for one exact scope.
func WritePermission(connectionID, serviceID, domain, area string) database.Statement {
	return permissionLookup(models.PermissionWrite, connectionID, serviceID, domain, area)
}

func permissionLookup(permissionType models.PermissionType, connectionID, serviceID, domain, area string) database.Statement {
	sql := `SELECT p."domain", p.area, p.data_path, a.pds_provider, a.pds_credentials
    FROM permissions p
    INNER JOIN connections c ON c.connection_id = p.connection_id
    INNER JOIN services s ON s.service_id = c.service_id
    INNER JOIN accounts a ON a.account_id = c.account_id
    WHERE p.type = '` + string(permissionType) + `'
    AND p.connection_id = $1
    AND c.service_id = $2
    AND p."domain" = $3`
	params := []interface{}{connectionID, serviceID, domain}

	if area != "" {
		sql += `
    AND p.area = $4`
		params = append(params, area)
	}

	sql += `
    AND ` + activePermission

	return database.Statement{SQL: sql, Params: params}
}

// inAccountNamespace reports whether kid was published by the account
// itself rather than by the service owning domain. Account keys live under
// the account id or under "<scheme>://jwks/" of the account id's scheme.
func inAccountNamespace(kid, accountID, domain string) bool {
	if kid == "" {
		return false
	}
	if domain != "" && strings.HasPrefix(kid, domain) {
		return false
	}
	if strings.HasPrefix(kid, accountID) {
		return true
	}
	u, err := url.Parse(accountID)
	if err != nil || u.Scheme == "" {
		return false
	}
	return strings.HasPrefix(kid, u.Scheme+"://jwks/")
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func stringOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
