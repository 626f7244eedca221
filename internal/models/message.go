package models

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates inbound JWT messages and outbound events.
type MessageType string

const (
	AccountRegistration   MessageType = "ACCOUNT_REGISTRATION"
	ServiceRegistration   MessageType = "SERVICE_REGISTRATION"
	LoginResponse         MessageType = "LOGIN_RESPONSE"
	ConnectionResponse    MessageType = "CONNECTION_RESPONSE"
	DataReadRequest       MessageType = "DATA_READ_REQUEST"
	DataWrite             MessageType = "DATA_WRITE"
	RecipientsReadRequest MessageType = "RECIPIENTS_READ_REQUEST"
	RecipientsWrite       MessageType = "RECIPIENTS_WRITE"

	LoginEvent             MessageType = "LOGIN_EVENT"
	ConnectionEvent        MessageType = "CONNECTION_EVENT"
	DataReadResponse       MessageType = "DATA_READ_RESPONSE"
	RecipientsReadResponse MessageType = "RECIPIENTS_READ_RESPONSE"
	ConsentApproved        MessageType = "CONSENT_APPROVED"
	LoginApproved          MessageType = "LOGIN_APPROVED"
)

// Message is a verified inbound JWT.
type Message struct {
	Header  map[string]interface{}
	Payload json.RawMessage
	Token   string
}

// Type returns the payload's type claim.
func (m *Message) Type() MessageType {
	var head struct {
		Type MessageType `json:"type"`
	}
	_ = json.Unmarshal(m.Payload, &head)
	return head.Type
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v interface{}) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type(), err)
	}
	return nil
}

// HeaderJWK returns the embedded jwk header as JSON, or nil.
func (m *Message) HeaderJWK() json.RawMessage {
	jwk, ok := m.Header["jwk"]
	if !ok || jwk == nil {
		return nil
	}
	raw, err := json.Marshal(jwk)
	if err != nil {
		return nil
	}
	return raw
}

// AccountRegistrationPayload registers an account and its PDS.
type AccountRegistrationPayload struct {
	Type MessageType     `json:"type"`
	Iss  string          `json:"iss" validate:"required"`
	PDS  PDSRegistration `json:"pds" validate:"required"`
}

// ServiceRegistrationPayload registers or updates a service.
type ServiceRegistrationPayload struct {
	Type        MessageType `json:"type"`
	Iss         string      `json:"iss" validate:"required,uri"`
	DisplayName string      `json:"displayName" validate:"required"`
	Description string      `json:"description"`
	IconURI     string      `json:"iconURI"`
	JWKSURI     string      `json:"jwksURI" validate:"required,uri"`
	EventsURI   string      `json:"eventsURI" validate:"required,uri"`
}

// HandshakeResponsePayload wraps an inner signed token (LOGIN_RESPONSE, CONNECTION_RESPONSE).
type HandshakeResponsePayload struct {
	Type    MessageType `json:"type"`
	Iss     string      `json:"iss" validate:"required"`
	Payload string      `json:"payload" validate:"required"`
}

// LoginPayload is the verified inner token of a LOGIN_RESPONSE.
type LoginPayload struct {
	Aud string `json:"aud"`
	Sub string `json:"sub"`
}

// ConnectionPayload is the verified inner token of a CONNECTION_RESPONSE.
type ConnectionPayload struct {
	Iss         string                `json:"iss"`
	Aud         string                `json:"aud"`
	Sub         string                `json:"sub"`
	Permissions *ConnectionPermission `json:"permissions,omitempty"`
}

// ConnectionPermission lists the permissions the account approved.
type ConnectionPermission struct {
	Approved []ApprovedPermission `json:"approved"`
}

// ApprovedPermission is one permission grant from a connection response.
type ApprovedPermission struct {
	ID          string         `json:"id"`
	Domain      string         `json:"domain"`
	Area        string         `json:"area"`
	Type        PermissionType `json:"type"`
	Description *string        `json:"description,omitempty"`
	Purpose     *string        `json:"purpose,omitempty"`
	LawfulBasis string         `json:"lawfulBasis"`
	Kid         string         `json:"kid,omitempty"`
	DataPath    *string        `json:"dataPath,omitempty"`
	JWKS        *KeySet        `json:"jwks,omitempty"`
}

// KeySet is a JWKS document; keys are kept as raw JSON objects.
type KeySet struct {
	Keys []map[string]interface{} `json:"keys"`
}

// PathRequest names one (domain, area) scope. An empty area means all areas.
type PathRequest struct {
	Domain string `json:"domain" validate:"required"`
	Area   string `json:"area,omitempty"`
}

// DataReadRequestPayload asks for documents on behalf of a connection.
type DataReadRequestPayload struct {
	Type  MessageType   `json:"type"`
	Iss   string        `json:"iss" validate:"required"`
	Sub   string        `json:"sub" validate:"required"`
	Paths []PathRequest `json:"paths" validate:"required,min=1,dive"`
}

// DataWritePath is one document to store.
type DataWritePath struct {
	Domain string          `json:"domain" validate:"required"`
	Area   string          `json:"area" validate:"required"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// DataWritePayload writes documents on behalf of a connection.
type DataWritePayload struct {
	Type  MessageType     `json:"type"`
	Iss   string          `json:"iss" validate:"required"`
	Sub   string          `json:"sub" validate:"required"`
	Paths []DataWritePath `json:"paths" validate:"required,min=1,dive"`
}

// RecipientsWritePath replaces the recipients of one document.
type RecipientsWritePath struct {
	Domain     string          `json:"domain" validate:"required"`
	Area       string          `json:"area" validate:"required"`
	Recipients json.RawMessage `json:"recipients"`
}

// RecipientsWritePayload updates recipients on behalf of a connection.
type RecipientsWritePayload struct {
	Type  MessageType           `json:"type"`
	Iss   string                `json:"iss" validate:"required"`
	Sub   string                `json:"sub" validate:"required"`
	Paths []RecipientsWritePath `json:"paths" validate:"required,min=1,dive"`
}

// PathError describes a failed read of one path.
type PathError struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
}

// PathResult is one entry of a read response.
type PathResult struct {
	Domain     string          `json:"domain"`
	Area       string          `json:"area"`
	Data       json.RawMessage `json:"data,omitempty"`
	Recipients json.RawMessage `json:"recipients,omitempty"`
	Error      *PathError      `json:"error,omitempty"`
}
