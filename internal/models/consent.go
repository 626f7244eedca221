package models

import "encoding/json"

// ConsentScopeRequest is one scope a service asks consent for.
type ConsentScopeRequest struct {
	Domain      string   `json:"domain" validate:"required"`
	Area        string   `json:"area" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
	Purpose     string   `json:"purpose" validate:"required"`
	LawfulBasis string   `json:"lawfulBasis" validate:"required"`
	Required    *bool    `json:"required,omitempty"`
}

// ConsentRequestBody is the signed body of POST /api/consents/requests
type ConsentRequestBody struct {
	ClientID string                `json:"clientId" validate:"required,uri"`
	Kid      string                `json:"kid" validate:"required,uri"`
	Scope    []ConsentScopeRequest `json:"scope" validate:"required,min=1,dive"`
	Expiry   int64                 `json:"expiry" validate:"required"`
}

// SignatureInfo is the signature part of a stored consent request.
type SignatureInfo struct {
	Alg    string      `json:"alg"`
	Kid    string      `json:"kid"`
	Data   string      `json:"data"`
	Client *ClientInfo `json:"client,omitempty"`
}

// StoredConsentRequest is the value kept in the cache under consentRequest:{id}.
type StoredConsentRequest struct {
	Data      json.RawMessage `json:"data"`
	Signature SignatureInfo   `json:"signature"`
}

// ConsentRequestCreated is returned when a pending request was stored.
type ConsentRequestCreated struct {
	ID      string `json:"id"`
	Link    string `json:"link"`
	Expires string `json:"expires"`
}

// ConsentRequestView is returned by GET /api/consents/requests/:id
type ConsentRequestView struct {
	Data      json.RawMessage `json:"data"`
	Signature SignatureInfo   `json:"signature"`
	Client    ClientInfo      `json:"client"`
}

// ConsentScopeEntry is one approved scope in a consent.
type ConsentScopeEntry struct {
	Domain                      string   `json:"domain" validate:"required,uri"`
	Area                        string   `json:"area" validate:"required"`
	ClientEncryptionDocumentKey string   `json:"clientEncryptionDocumentKey,omitempty" validate:"omitempty,base64"`
	Description                 string   `json:"description,omitempty"`
	Purpose                     string   `json:"purpose,omitempty"`
	LawfulBasis                 string   `json:"lawfulBasis,omitempty"`
	Permissions                 []string `json:"permissions,omitempty"`
	AccessKeyIDs                []string `json:"accessKeyIds,omitempty"`
}

// HasPermission reports whether the scope grants the named permission.
func (s ConsentScopeEntry) HasPermission(p PermissionType) bool {
	for _, granted := range s.Permissions {
		if PermissionType(granted) == p {
			return true
		}
	}
	return false
}

// ConsentApprovalRequest is the signed body of POST /api/consents
type ConsentApprovalRequest struct {
	ConsentRequestID       string              `json:"consentRequestId" validate:"required,uuid"`
	ConsentEncryptionKey   string              `json:"consentEncryptionKey" validate:"required,base64"`
	ConsentEncryptionKeyID string              `json:"consentEncryptionKeyId" validate:"required"`
	AccountID              string              `json:"accountId" validate:"required"`
	AccountKey             string              `json:"accountKey" validate:"required,base64"`
	ClientID               string              `json:"clientId" validate:"required,uri"`
	Scope                  []ConsentScopeEntry `json:"scope" validate:"required,min=1,dive"`
}

// ConsentApprovedPayload is the payload of a CONSENT_APPROVED event.
type ConsentApprovedPayload struct {
	ConsentRequestID string              `json:"consentRequestId"`
	ConsentID        string              `json:"consentId"`
	AccessToken      string              `json:"accessToken"`
	Scope            []ConsentScopeEntry `json:"scope"`
	Keys             map[string]string   `json:"keys"`
}

// ConsentApprovedEvent notifies a client that an account approved its request.
type ConsentApprovedEvent struct {
	Type    MessageType            `json:"type"`
	Payload ConsentApprovedPayload `json:"payload"`
}

// LoginApprovedEvent notifies a client that an account logged in.
type LoginApprovedEvent struct {
	Type        MessageType         `json:"type"`
	AccessToken string              `json:"accessToken"`
	Payload     AccountLoginRequest `json:"payload"`
}

// ConsentScope is a row of the legacy scope listing.
type ConsentScope struct {
	AccountID      string `db:"account_id"`
	PDSProvider    string `db:"pds_provider"`
	PDSCredentials []byte `db:"pds_credentials"`
	Domain         string `db:"domain"`
	Area           string `db:"area"`
	Read           bool   `db:"read"`
	Write          bool   `db:"write"`
}
