package messages

import (
	"context"
	"net/http"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/service"
)

// Services are the handlers behind each message type.
type Services struct {
	Accounts   *service.AccountService
	Clients    *service.ClientService
	Handshakes *service.HandshakeService
	Data       *service.DataService
}

// NewDefaultRegistry registers a handler for every inbound message type.
func NewDefaultRegistry(s Services) (*Registry, error) {
	r := NewRegistry()

	handlers := map[models.MessageType]Handler{
		models.AccountRegistration:   status(http.StatusCreated, s.Accounts.RegisterAccount),
		models.ServiceRegistration:   status(http.StatusOK, s.Clients.RegisterService),
		models.LoginResponse:         status(http.StatusOK, s.Handshakes.LoginResponse),
		models.ConnectionResponse:    status(http.StatusCreated, s.Handshakes.ConnectionResponse),
		models.DataReadRequest:       signed(s.Data.ReadData),
		models.DataWrite:             status(http.StatusOK, s.Data.WriteData),
		models.RecipientsReadRequest: signed(s.Data.ReadRecipients),
		models.RecipientsWrite:       status(http.StatusOK, s.Data.WriteRecipients),
	}
	for t, h := range handlers {
		if err := r.Register(t, h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func status(code int, fn func(context.Context, *models.Message) error) Handler {
	return func(ctx context.Context, msg *models.Message) (*Response, error) {
		if err := fn(ctx, msg); err != nil {
			return nil, err
		}
		return Status(code), nil
	}
}

func signed(fn func(context.Context, *models.Message) (string, error)) Handler {
	return func(ctx context.Context, msg *models.Message) (*Response, error) {
		token, err := fn(ctx, msg)
		if err != nil {
			return nil, err
		}
		return JWT(http.StatusOK, token), nil
	}
}
