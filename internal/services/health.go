package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/localnerve/stepio/internal/config"
	"github.com/localnerve/stepio/internal/utils"
)

// Health statuses. Degraded means an optional collaborator is down and the
// record operations still work.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer,omitempty"`
	Redis        string            `json:"redis,omitempty"`
	Billing      string            `json:"billing,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthDeps are the collaborators a health check probes. Nil members are
// reported as not configured.
type HealthDeps struct {
	DB     *gorm.DB
	Redis  redis.Cmdable
	Logger *zap.Logger
}

func (r *HealthCheckResult) fail(status, key, what string, err error) {
	if r.Status != StatusUnhealthy {
		r.Status = status
	}
	r.Details[key] = err.Error()
	msg := fmt.Sprintf("%s: %v", what, err)
	if r.ErrorMessage == "" {
		r.ErrorMessage = msg
	} else {
		r.ErrorMessage = strings.Join([]string{r.ErrorMessage, msg}, "; ")
	}
}

// HealthCheck performs a comprehensive health check of the service
func HealthCheck(ctx context.Context, cfg *config.Config, deps HealthDeps) HealthCheckResult {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	result := HealthCheckResult{
		Status:  StatusHealthy,
		Details: make(map[string]string),
	}

	// Check database connectivity
	if deps.DB == nil {
		result.Database = "not configured"
		result.fail(StatusUnhealthy, "database_error", "Database connection error", fmt.Errorf("no database"))
	} else if sqlDB, err := deps.DB.DB(); err != nil {
		result.Database = "error"
		result.fail(StatusUnhealthy, "database_error", "Database connection error", err)
		logger.Error("health check failed - database connection", zap.Error(err))
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Database = "unreachable"
		result.fail(StatusUnhealthy, "database_ping_error", "Database ping failed", err)
		logger.Error("health check failed - database ping", zap.Error(err))
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	// Authorizer is only required when sessions come from it
	if cfg.AuthzURL != "" {
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			result.Authorizer = "unreachable"
			result.fail(StatusUnhealthy, "authorizer_error", "Authorizer ping failed", err)
			logger.Error("health check failed - authorizer ping", zap.Error(err))
		} else {
			result.Authorizer = "ok"
			result.Details["authorizer_url"] = cfg.AuthzURL
		}
	}

	if deps.Redis != nil {
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			result.Redis = "unreachable"
			result.fail(StatusDegraded, "redis_error", "Redis ping failed", err)
			logger.Warn("health check degraded - redis ping", zap.Error(err))
		} else {
			result.Redis = "ok"
		}
	}

	if cfg.BillingURL != "" {
		if err := utils.PingBilling(cfg.BillingURL); err != nil {
			result.Billing = "unreachable"
			result.fail(StatusDegraded, "billing_error", "Billing ping failed", err)
			logger.Warn("health check degraded - billing ping", zap.Error(err))
		} else {
			result.Billing = "ok"
		}
	}

	if result.Status == StatusHealthy {
		logger.Debug("health check passed - all systems operational")
	}
	return result
}
