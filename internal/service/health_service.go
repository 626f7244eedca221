package service

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
)

const (
	statusOK    = "OK"
	statusNotOK = "!OK"
)

// HealthChecker is a dependency that can report whether it is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthService checks the operator's backing services.
type HealthService struct {
	checks map[string]HealthChecker
	logger *logrus.Logger
}

// NewHealthService creates a HealthService over named checks.
func NewHealthService(checks map[string]HealthChecker, logger *logrus.Logger) *HealthService {
	return &HealthService{checks: checks, logger: logger}
}

// Check returns "OK" or "!OK" per dependency and whether all are OK.
func (s *HealthService) Check(ctx context.Context) (map[string]string, bool) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			s.logger.WithError(err).WithField("dependency", name).Warn("Health check failed")
			status[name] = statusNotOK
			healthy = false
			continue
		}
		status[name] = statusOK
	}
	return status, healthy
}
