package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/stepio/internal/types"
)

// ErrorHandler renders every error returned by a handler or middleware.
// E_VERSION errors become 409 version errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	var custom *types.CustomError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &custom):
		code, message, errorType = custom.Code, custom.Message, custom.Type
	case errors.As(err, &fiberErr):
		code, message = fiberErr.Code, fiberErr.Message
	}

	if code == fiber.StatusConflict || strings.HasPrefix(message, "E_VERSION") {
		return VersionErrorResponse(c)
	}
	return ErrorResponse(c, message, code, errorType)
}

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(ErrorResponseStruct{
		Status:    status,
		Message:   message,
		Ok:        false,
		Timestamp: timestamp(),
		URL:       c.OriginalURL(),
		Type:      errorType,
	})
}

// VersionErrorResponse sends a version conflict error (409)
func VersionErrorResponse(c *fiber.Ctx) error {
	return c.Status(fiber.StatusConflict).JSON(ErrorResponseStruct{
		Status:       fiber.StatusConflict,
		Message:      "E_VERSION - Refresh and reconcile with current version and retry.",
		Ok:           false,
		VersionError: true,
		Timestamp:    timestamp(),
		URL:          c.OriginalURL(),
		Type:         "version",
	})
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponseStruct{
		Status:    fiber.StatusNotFound,
		Message:   message,
		Ok:        false,
		Timestamp: timestamp(),
		URL:       c.OriginalURL(),
		Type:      "not_found",
	})
}

// RecordResponse sends the record snapshot produced by a store operation.
func RecordResponse(c *fiber.Ctx, record interface{}) error {
	return c.Status(fiber.StatusOK).JSON(RecordResponseStruct{
		Ok:        true,
		Timestamp: timestamp(),
		Data:      record,
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status       int    `json:"status"`
	Message      string `json:"message"`
	Ok           bool   `json:"ok"`
	Timestamp    string `json:"timestamp"`
	URL          string `json:"url"`
	Type         string `json:"type,omitempty"`
	VersionError bool   `json:"versionError,omitempty"`
}

// RecordResponseStruct defines the schema for record snapshot responses
type RecordResponseStruct struct {
	Ok        bool        `json:"ok"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}
