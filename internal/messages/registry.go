// Package messages routes verified JWT messages to their handlers by type.
package messages

import (
	"context"
	"fmt"
	"net/http"

	"github.com/egendata/operator/internal/models"
	"github.com/egendata/operator/internal/serviceerror"
)

// Response is what a handler answers with.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Status is a response with an empty body.
func Status(code int) *Response {
	return &Response{Status: code, ContentType: "text/plain; charset=utf-8", Body: []byte(http.StatusText(code))}
}

// JWT is a response carrying a signed token.
func JWT(code int, token string) *Response {
	return &Response{Status: code, ContentType: "application/jwt", Body: []byte(token)}
}

// Handler handles one message type.
type Handler func(ctx context.Context, msg *models.Message) (*Response, error)

// Registry holds all registered message handlers
type Registry struct {
	handlers map[models.MessageType]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[models.MessageType]Handler)}
}

// Register adds a handler for t.
// Returns error if a handler for this type is already registered
func (r *Registry) Register(t models.MessageType, h Handler) error {
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler for message type %q already registered", t)
	}
	r.handlers[t] = h
	return nil
}

// Get retrieves the handler for t. Unknown types are a validation error.
func (r *Registry) Get(t models.MessageType) (Handler, error) {
	h, exists := r.handlers[t]
	if !exists {
		return nil, serviceerror.Validation("Unknown type", nil)
	}
	return h, nil
}

// Types returns the registered message types
func (r *Registry) Types() []models.MessageType {
	types := make([]models.MessageType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
