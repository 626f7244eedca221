// Package events delivers operator notifications to service event endpoints.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/config"
	"github.com/egendata/operator/internal/middleware"
)

const (
	ContentTypeJWT  = "application/jwt"
	ContentTypeJSON = "application/json"
)

// Client posts events to counterpart URIs. Deliveries are attempted once;
// a transport error or non-2xx status is returned to the caller.
type Client struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a client with the configured timeout.
func NewClient(cfg *config.EventsConfig, logger *logrus.Logger) *Client {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// SendJWT posts a signed token as application/jwt.
func (c *Client) SendJWT(ctx context.Context, url, token string) error {
	return c.post(ctx, url, ContentTypeJWT, []byte(token))
}

// SendJSON posts event as application/json.
func (c *Client) SendJSON(ctx context.Context, url string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return c.post(ctx, url, ContentTypeJSON, body)
}

func (c *Client) post(ctx context.Context, url, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.WithError(err).Error("Failed to create event request")
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	if correlationID := middleware.CorrelationIDFrom(ctx); correlationID != "" {
		req.Header.Set(middleware.CorrelationIDHeader, correlationID)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url":      url,
			"duration": duration,
		}).Error("Event delivery failed")
		return fmt.Errorf("could not send event to %s: %w", url, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	c.logger.WithFields(logrus.Fields{
		"url":         url,
		"statusCode":  resp.StatusCode,
		"contentType": contentType,
		"duration":    duration,
	}).Debug("Event delivered")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"statusCode": resp.StatusCode,
			"response":   string(respBody),
		}).Warn("Event endpoint returned non-success status")
		return fmt.Errorf("event endpoint %s returned status %d", url, resp.StatusCode)
	}

	return nil
}

// Close closes idle connections.
func (c *Client) Close() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}
