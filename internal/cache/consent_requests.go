// Package cache keeps pending consent requests in Redis until an account
// answers them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/egendata/operator/internal/config"
	"github.com/egendata/operator/internal/models"
)

const (
	keyPrefix         = "consentRequest:"
	requestTTL        = time.Hour
	maxCreateAttempts = 10
)

// ErrNotFound is returned for unknown or expired requests.
var ErrNotFound = errors.New("consent request not found")

// ConsentRequests stores pending requests under consentRequest:{id}.
type ConsentRequests struct {
	client *redis.Client
	logger *logrus.Logger
	now    func() time.Time
	newID  func() string
}

// Connect opens a Redis client for cfg.
func Connect(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewConsentRequests creates the store.
func NewConsentRequests(client *redis.Client, logger *logrus.Logger) *ConsentRequests {
	return &ConsentRequests{
		client: client,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Create stores a request under a fresh id. Ids that already exist are
// skipped; after ten collisions the request is rejected.
func (s *ConsentRequests) Create(ctx context.Context, request *models.StoredConsentRequest) (*models.ConsentRequestCreated, error) {
	value, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal consent request: %w", err)
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		id := s.newID()
		stored, err := s.client.SetNX(ctx, keyPrefix+id, value, requestTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to store consent request: %w", err)
		}
		if !stored {
			s.logger.WithFields(logrus.Fields{"id": id, "attempt": attempt}).Warn("Consent request id collision")
			continue
		}

		return &models.ConsentRequestCreated{
			ID:      id,
			Link:    "mydata://register/" + id,
			Expires: strconv.FormatInt(s.now().Add(requestTTL).Unix(), 10),
		}, nil
	}

	return nil, fmt.Errorf("failed to allocate consent request id after %d attempts", maxCreateAttempts)
}

// Get returns the pending request with id.
func (s *ConsentRequests) Get(ctx context.Context, id string) (*models.StoredConsentRequest, error) {
	value, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load consent request: %w", err)
	}

	var request models.StoredConsentRequest
	if err := json.Unmarshal(value, &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal consent request: %w", err)
	}
	return &request, nil
}

// HealthCheck pings Redis.
func (s *ConsentRequests) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
