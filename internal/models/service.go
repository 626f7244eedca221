package models

import (
	"database/sql"
	"time"
)

// Service is a registered relying party. Legacy "clients" are stored as services.
type Service struct {
	ServiceID   string         `db:"service_id" json:"serviceId"`
	ServiceKey  string         `db:"service_key" json:"serviceKey"`
	DisplayName string         `db:"display_name" json:"displayName"`
	Description sql.NullString `db:"description" json:"-"`
	IconURI     sql.NullString `db:"icon_uri" json:"-"`
	JWKSURI     sql.NullString `db:"jwks_uri" json:"-"`
	EventsURI   string         `db:"events_uri" json:"eventsURI"`
	Created     time.Time      `db:"created" json:"-"`
}

// ClientInfo is the signer context attached to a verified envelope.
type ClientInfo struct {
	ClientID    string `json:"clientId,omitempty"`
	JWKSURL     string `json:"jwksUrl"`
	EventsURL   string `json:"eventsUrl,omitempty"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// ToClientInfo projects a service into the client context shape.
func (s *Service) ToClientInfo() *ClientInfo {
	return &ClientInfo{
		ClientID:    s.ServiceID,
		JWKSURL:     s.JWKSURI.String,
		EventsURL:   s.EventsURI,
		DisplayName: s.DisplayName,
		Description: s.Description.String,
	}
}

// ClientRegistrationRequest is the signed body of POST /api/clients
type ClientRegistrationRequest struct {
	ClientID    string `json:"clientId" validate:"required,uri"`
	DisplayName string `json:"displayName" validate:"required"`
	Description string `json:"description" validate:"required,min=10"`
	EventsURL   string `json:"eventsUrl" validate:"required,uri"`
	JWKSURL     string `json:"jwksUrl" validate:"required,uri"`
}

// ClientRegistrationResponse echoes a registered client
type ClientRegistrationResponse struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	EventsURL   string `json:"eventsUrl"`
	JWKSURL     string `json:"jwksUrl"`
	ClientKey   string `json:"clientKey"`
}
