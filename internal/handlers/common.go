// common.go
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

package handlers

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/stepio/internal/middleware"
	"github.com/localnerve/stepio/internal/models"
	"github.com/localnerve/stepio/internal/notifications"
	"github.com/localnerve/stepio/internal/types"
)

// Error types reported to clients.
const (
	errValidation    = "stepio.validation"
	errUnavailable   = "stepio.unavailable"
	errAuthorization = "stepio.authorization.user"
	errPlan          = "stepio.plan"
	errNotFound      = "stepio.not_found"
	errNotifications = "stepio.notifications"
	errBilling       = "stepio.billing"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// parseBody decodes the JSON body into dst. An empty body leaves dst as is.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dst); err != nil {
		return types.NewError(fiber.StatusBadRequest, errValidation, "Invalid request body: %v", err)
	}
	return nil
}

// required reports the first empty field among name/value pairs.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return types.NewError(fiber.StatusBadRequest, errValidation, "%s is required", pairs[i])
		}
	}
	return nil
}

func validDate(field, value string) error {
	if !datePattern.MatchString(value) {
		return types.NewError(fiber.StatusBadRequest, errValidation, "%s must be YYYY-MM-DD", field)
	}
	return nil
}

// oneOf rejects a value outside its closed set.
func oneOf(field, value string, valid bool) error {
	if !valid {
		return types.NewError(fiber.StatusBadRequest, errValidation, "%s %q is not a known option", field, value)
	}
	return nil
}

// validInstant requires a datetime the reminder engine can schedule, read in
// the caller's zone.
func validInstant(c *fiber.Ctx, field, value string) error {
	if _, err := notifications.ParseInstant(value, middleware.LocationFrom(c)); err != nil {
		return types.NewError(fiber.StatusBadRequest, errValidation, "%s must be YYYY-MM-DDTHH:MM", field)
	}
	return nil
}

// requirePro gates the pro features on the effective plan.
func requirePro(rec models.Record) error {
	if !rec.Plan.IsPro() {
		return &types.CustomError{
			Code:    fiber.StatusPaymentRequired,
			Message: "This feature requires an active pro plan",
			Type:    errPlan,
		}
	}
	return nil
}

func childNotFound(childID string) error {
	return types.NewError(fiber.StatusNotFound, errNotFound, "Child '%s' not found", childID)
}
