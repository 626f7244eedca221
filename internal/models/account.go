package models

import "time"

// Account is an end user owning a PDS.
type Account struct {
	AccountID      string    `db:"account_id" json:"id"`
	AccountKey     string    `db:"account_key" json:"accountKey"`
	PDSProvider    string    `db:"pds_provider" json:"-"`
	PDSCredentials []byte    `db:"pds_credentials" json:"-"`
	Created        time.Time `db:"created" json:"created"`
}

// PDSInfo is the part of an account's PDS configuration that may be exposed.
type PDSInfo struct {
	Provider string `json:"provider"`
}

// AccountView is returned by GET /api/accounts/:accountId
type AccountView struct {
	ID         string  `json:"id"`
	AccountKey string  `json:"accountKey"`
	PDS        PDSInfo `json:"pds"`
}

// PDSRegistration is the pds block of an account registration.
type PDSRegistration struct {
	Provider    string `json:"provider" validate:"required"`
	AccessToken string `json:"access_token" validate:"required"`
}

// AccountCreateRequest is the signed body of POST /api/accounts
type AccountCreateRequest struct {
	AccountKey string          `json:"accountKey" validate:"required,base64"`
	PDS        PDSRegistration `json:"pds" validate:"required"`
}

// AccountLoginRequest is the body of POST /api/accounts/:accountId/login
type AccountLoginRequest struct {
	Timestamp int64  `json:"timestamp" validate:"required"`
	ClientID  string `json:"clientId" validate:"required,uri"`
	SessionID string `json:"sessionId" validate:"required"`
	ConsentID string `json:"consentId" validate:"required,uuid"`
}

// AccountKey caches a key an account published for a writer scope.
type AccountKey struct {
	AccountKeyID string `db:"account_key_id" json:"kid"`
	AccountID    string `db:"account_id" json:"accountId"`
	Domain       string `db:"domain" json:"domain"`
	Area         string `db:"area" json:"area"`
	ReadKey      string `db:"read_key" json:"readKey"`
}
