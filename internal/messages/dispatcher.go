package messages

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
)

// Verifier verifies an inbound token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.Message, error)
}

// Observer records handled messages.
type Observer interface {
	ObserveMessage(messageType string, status int)
}

// Dispatcher verifies a message and runs the handler for its type.
type Dispatcher struct {
	verifier Verifier
	registry *Registry
	observer Observer
	logger   *logrus.Logger
}

// NewDispatcher creates a dispatcher. observer may be nil.
func NewDispatcher(verifier Verifier, registry *Registry, observer Observer, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{verifier: verifier, registry: registry, observer: observer, logger: logger}
}

// Dispatch handles one token end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, token string) (*Response, error) {
	msg, err := d.verifier.Verify(ctx, token)
	if err != nil {
		d.observe("", err, nil)
		return nil, err
	}

	msgType := msg.Type()
	handler, err := d.registry.Get(msgType)
	if err != nil {
		d.logger.WithField("type", msgType).Warn("Unknown message type")
		d.observe(msgType, err, nil)
		return nil, err
	}

	resp, err := handler(ctx, msg)
	d.observe(msgType, err, resp)
	if err != nil {
		d.logger.WithError(err).WithField("type", msgType).Info("Message rejected")
		return nil, err
	}
	return resp, nil
}

func (d *Dispatcher) observe(msgType models.MessageType, err error, resp *Response) {
	if d.observer == nil {
		return
	}
	code := 0
	switch {
	case err != nil:
		code = serviceerror.StatusOf(err)
	case resp != nil:
		code = resp.Status
	}
	if msgType == "" {
		msgType = "UNVERIFIED"
	}
	d.observer.ObserveMessage(string(msgType), code)
}
