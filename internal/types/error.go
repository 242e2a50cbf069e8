package types

import "fmt"

// CustomError carries an HTTP status and an error type through fiber's error handler.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewError builds a CustomError with a formatted message.
func NewError(code int, errorType, format string, args ...interface{}) *CustomError {
	return &CustomError{Code: code, Message: fmt.Sprintf(format, args...), Type: errorType}
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}
