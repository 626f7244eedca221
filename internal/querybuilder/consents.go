package querybuilder

import (
	"github.com/egendata/operator/internal/database"
	"github.com/egendata/operator/internal/models"
)

// ConsentRequestInsert records an approved consent request.
func ConsentRequestInsert(consentRequestID, consentID, accountID, serviceID string, response []byte) database.Statement {
	return database.NewStatement(`INSERT INTO consent_requests(
      consent_request_id, consent_id, account_id, service_id, response
    ) VALUES($1, $2, $3, $4, $5)`, consentRequestID, consentID, accountID, serviceID, string(response))
}

// ScopeInsert records one approved scope.
func ScopeInsert(scopeID, consentID string, entry models.ConsentScopeEntry) database.Statement {
	return database.NewStatement(`INSERT INTO scope(
      scope_id, consent_id, "domain", area, description, purpose, lawful_basis, read, write
    ) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		scopeID,
		consentID,
		entry.Domain,
		entry.Area,
		nullable(entry.Description),
		nullable(entry.Purpose),
		nullable(entry.LawfulBasis),
		entry.HasPermission(models.PermissionRead),
		entry.HasPermission(models.PermissionWrite),
	)
}

// EncryptionKeyInsert stores a consent encryption key once.
func EncryptionKeyInsert(keyID, key string) database.Statement {
	return database.NewStatement(`INSERT INTO encryption_keys(
      key_id, encryption_key
    ) VALUES($1, $2)
    ON CONFLICT DO NOTHING`, keyID, key)
}

// ScopeKeyInsert links a scope to an encryption key.
func ScopeKeyInsert(scopeID, keyID string) database.Statement {
	return database.NewStatement(`INSERT INTO scope_keys(
      scope_id, encryption_key_id
    ) VALUES($1, $2)`, scopeID, keyID)
}

// ConsentScopes lists the scopes of a consent with the owning account's PDS,
// optionally narrowed to a domain and then an area.
func ConsentScopes(consentID, domain, area string) database.Statement {
	sql := `SELECT cr.account_id, a.pds_provider, a.pds_credentials, s."domain", s.area, s.read, s.write
    FROM consent_requests cr
    INNER JOIN accounts a ON a.account_id = cr.account_id
    INNER JOIN scope s ON s.consent_id = cr.consent_id
    WHERE cr.consent_id = $1`
	params := []interface{}{consentID}

	if domain != "" {
		sql += ` AND s."domain" = $2`
		params = append(params, domain)

		if area != "" {
			sql += ` AND s.area = $3`
			params = append(params, area)
		}
	}

	return database.Statement{SQL: sql, Params: params}
}

// ConsentOwnership counts consents of accountID with consentID.
func ConsentOwnership(accountID, consentID string) database.Statement {
	return database.NewStatement(`SELECT COUNT(*) AS count FROM consent_requests WHERE account_id = $1 AND consent_id = $2`, accountID, consentID)
}
