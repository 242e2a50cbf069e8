// billing.go
//
// Stepio record service: the per-family health routine store behind the Stepio apps
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of stepio.
// stepio is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// stepio is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with stepio.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/localnerve/stepio/internal/models"
)

// ErrBillingUnavailable is returned when no billing service is configured or
// it could not be reached.
var ErrBillingUnavailable = errors.New("billing unavailable")

type billingRequest struct {
	UserID string `json:"userId"`
}

type managementResponse struct {
	URL string `json:"url"`
}

type entitlementsResponse struct {
	Tier   models.Tier       `json:"tier"`
	Status models.PlanStatus `json:"status"`
}

// BillingClient talks to the subscription provider.
type BillingClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewBillingClient creates a billing client. An empty baseURL yields a client
// whose calls all fail with ErrBillingUnavailable.
func NewBillingClient(baseURL, apiKey string, logger *zap.Logger) *BillingClient {
	if baseURL == "" {
		return &BillingClient{logger: logger}
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &BillingClient{httpClient: client, logger: logger}
}

// Configured reports whether a billing service URL was given.
func (c *BillingClient) Configured() bool {
	return c.httpClient != nil
}

// OpenManagement returns the subscription management page for userID.
func (c *BillingClient) OpenManagement(ctx context.Context, userID string) (string, error) {
	if !c.Configured() {
		return "", ErrBillingUnavailable
	}

	var out managementResponse
	if err := c.post(ctx, "/portal", userID, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: empty management url", ErrBillingUnavailable)
	}
	return out.URL, nil
}

// SyncEntitlements asks the provider to reconcile the user's subscription and
// returns the resulting plan.
func (c *BillingClient) SyncEntitlements(ctx context.Context, userID string) (models.SubscriptionPlan, error) {
	if !c.Configured() {
		return models.SubscriptionPlan{}, ErrBillingUnavailable
	}

	var out entitlementsResponse
	if err := c.post(ctx, "/entitlements/sync", userID, &out); err != nil {
		return models.SubscriptionPlan{}, err
	}

	plan := models.DefaultPlan
	if out.Tier != "" {
		plan.Tier = out.Tier
	}
	if out.Status != "" {
		plan.Status = out.Status
	}
	c.logger.Info("billing entitlements synced",
		zap.String("user_id", userID),
		zap.String("tier", string(plan.Tier)),
		zap.String("status", string(plan.Status)))
	return plan, nil
}

func (c *BillingClient) post(ctx context.Context, path, userID string, result interface{}) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(billingRequest{UserID: userID}).
		SetResult(result).
		Post(path)
	if err != nil {
		c.logger.Error("billing call failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrBillingUnavailable, err)
	}
	if resp.IsError() {
		c.logger.Error("billing returned error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()))
		return fmt.Errorf("%w: status %d", ErrBillingUnavailable, resp.StatusCode())
	}
	return nil
}
