package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeBusinessRule = "BUSINESS_RULE"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Details []string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string, details ...string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Details: details,
	}
}

// NewBusinessRuleError reports a well-formed request that violates a domain rule.
func NewBusinessRuleError(message string) *AppError {
	return &AppError{
		Code:    CodeBusinessRule,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// StatusFor maps an error to the HTTP status the API answers with.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeBusinessRule:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError writes err in the standard envelope. Internal details are
// only exposed when exposeDetails is set (development mode).
func RespondWithError(c *fiber.Ctx, status int, err error, exposeDetails bool) error {
	response := APIResponse[any]{Success: false}

	var appErr *AppError
	if errors.As(err, &appErr) {
		response.Message = appErr.Message
		response.Errors = append(response.Errors, appErr.Details...)
		if appErr.Err != nil && exposeDetails {
			response.Errors = append(response.Errors, appErr.Err.Error())
		}
	} else {
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			response.Message = fiberErr.Message
		case errors.Is(err, context.DeadlineExceeded):
			response.Message = "Request timed out"
		case status >= fiber.StatusInternalServerError:
			response.Message = "Internal server error"
			if exposeDetails {
				response.Errors = []string{err.Error()}
			}
		default:
			response.Message = err.Error()
		}
	}
	if response.Errors == nil {
		response.Errors = []string{}
	}

	return c.Status(status).JSON(response)
}
