// Package validation validates request structs with go-playground/validator and
// translates failures into the API's validation error.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"commentboard/internal/models"

	"github.com/go-playground/validator/v10"
)

// MessageValidationFailed is the envelope message for rejected requests.
const MessageValidationFailed = "Validation failed"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the process-wide validator. It is safe for concurrent use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(listCommentsLevel, models.ListCommentsRequest{})
	})
	return validate
}

func listCommentsLevel(sl validator.StructLevel) {
	req := sl.Current().Interface().(models.ListCommentsRequest)
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		sl.ReportError(req.StartDate, "StartDate", "StartDate", "datebefore", "EndDate")
	}
}

// Struct validates s and returns a validation AppError listing every violation.
func Struct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return models.NewValidationError(MessageValidationFailed, err.Error())
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, translateError(fe))
	}
	return models.NewValidationError(MessageValidationFailed, messages...)
}

// Failed builds the same error for violations found outside the validator,
// such as unparseable query values.
func Failed(messages ...string) error {
	return models.NewValidationError(MessageValidationFailed, messages...)
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"alphanum": "%s may only contain letters and digits",
	"http_url": "%s must be an absolute http or https URL",
}

var errorMessageWithParam = map[string]string{
	"oneof":      "%s must be one of: %s",
	"gt":         "%s must be greater than %s",
	"datebefore": "%s must not be after %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		if tag == "oneof" {
			param = strings.ReplaceAll(param, " ", ", ")
		}
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind().String() == "string"
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

// NormalizeSortBy maps a sort key to its canonical spelling, case-insensitively.
// Unknown keys are returned unchanged so validation can reject them.
func NormalizeSortBy(sortBy string) string {
	trimmed := strings.TrimSpace(sortBy)
	if trimmed == "" {
		return models.SortByCreatedAt
	}
	for _, key := range []string{models.SortByCreatedAt, models.SortByUserName, models.SortByEmail} {
		if strings.EqualFold(trimmed, key) {
			return key
		}
	}
	return trimmed
}
