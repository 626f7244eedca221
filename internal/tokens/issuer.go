package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/egendata/operator/internal/models"
)

// Issuer signs the operator's outbound tokens with RS256.
type Issuer struct {
	key  *OperatorKey
	host string
	now  func() time.Time
}

// NewIssuer creates an issuer that names host as iss.
func NewIssuer(key *OperatorKey, host string) *Issuer {
	return &Issuer{key: key, host: host, now: time.Now}
}

// Host is the iss of every issued token.
func (i *Issuer) Host() string {
	return i.host
}

func (i *Issuer) sign(claims jwt.MapClaims) (string, error) {
	claims["iss"] = i.host
	claims["iat"] = i.now().Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.key.KeyID

	signed, err := token.SignedString(i.key.Private)
	if err != nil {
		return "", fmt.Errorf("failed to sign %v: %w", claims["type"], err)
	}
	return signed, nil
}

// LoginEvent tells a service that an account logged in. payload is the
// account's signed login token.
func (i *Issuer) LoginEvent(serviceID, payload string) (string, error) {
	return i.sign(jwt.MapClaims{
		"type":    models.LoginEvent,
		"aud":     serviceID,
		"payload": payload,
	})
}

// ConnectionEvent tells a service that an account approved a connection.
func (i *Issuer) ConnectionEvent(serviceID, payload string) (string, error) {
	return i.sign(jwt.MapClaims{
		"type":    models.ConnectionEvent,
		"aud":     serviceID,
		"payload": payload,
	})
}

// DataReadResponse answers a DATA_READ_REQUEST from requester.
func (i *Issuer) DataReadResponse(requester, sub string, paths []models.PathResult) (string, error) {
	return i.readResponse(models.DataReadResponse, requester, sub, paths)
}

// RecipientsReadResponse answers a RECIPIENTS_READ_REQUEST from requester.
func (i *Issuer) RecipientsReadResponse(requester, sub string, paths []models.PathResult) (string, error) {
	return i.readResponse(models.RecipientsReadResponse, requester, sub, paths)
}

func (i *Issuer) readResponse(t models.MessageType, requester, sub string, paths []models.PathResult) (string, error) {
	if paths == nil {
		paths = []models.PathResult{}
	}
	return i.sign(jwt.MapClaims{
		"type":  t,
		"aud":   requester,
		"sub":   sub,
		"paths": paths,
	})
}
