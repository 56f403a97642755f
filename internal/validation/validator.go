// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

// Package validation wraps go-playground/validator v10 in a process-wide
// singleton and translates field errors into the control plane's
// VALIDATION_ERROR format.
//
// Besides the built-in tags it registers:
//   - tenantid: 1-128 characters of [A-Za-z0-9._-], starting alphanumeric
//   - archiveid: a 26 character ULID
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
)

// ValidationError is one field that failed validation.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field name that failed validation.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Error returns a human-readable message.
func (e *ValidationError) Error() string { return e.message }

// RequestValidationError collects every failed field of one struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for i := range ve.errors {
		messages = append(messages, ve.errors[i].Error())
	}
	return strings.Join(messages, "; ")
}

// APIError mirrors the control plane error body without importing it.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError converts the failure into a VALIDATION_ERROR body.
func (ve *RequestValidationError) ToAPIError() *APIError {
	if len(ve.errors) == 1 {
		e := ve.errors[0]
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: e.message,
			Details: map[string]interface{}{"field": e.field, "tag": e.tag},
		}
	}
	fields := make([]map[string]interface{}, 0, len(ve.errors))
	for _, e := range ve.errors {
		fields = append(fields, map[string]interface{}{
			"field":   e.field,
			"tag":     e.tag,
			"message": e.message,
		})
	}
	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: ve.Error(),
		Details: map[string]interface{}{"fields": fields},
	}
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("tenantid", func(fl validator.FieldLevel) bool {
			return IsTenantID(fl.Field().String())
		})
		_ = validate.RegisterValidation("archiveid", func(fl validator.FieldLevel) bool {
			return IsArchiveID(fl.Field().String())
		})
	})
	return validate
}

// IsTenantID reports whether s is an acceptable tenant identifier.
func IsTenantID(s string) bool {
	return tenantIDPattern.MatchString(s)
}

// IsArchiveID reports whether s is a well-formed archive identifier.
func IsArchiveID(s string) bool {
	if len(s) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// ValidateStruct validates s with the singleton validator. It returns nil when
// s is valid.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestValidationError{errors: []ValidationError{{
			field:   "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	out := make([]ValidationError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = ValidationError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			value:   fe.Value(),
			message: translateError(fe),
		}
	}
	return &RequestValidationError{errors: out}
}

var errorMessageTemplates = map[string]string{
	"required":      "%s is required",
	"tenantid":      "%s must be 1-128 characters of letters, digits, '.', '_' or '-'",
	"archiveid":     "%s must be a valid archive identifier",
	"url":           "%s must be a valid URL",
	"hostname_port": "%s must be host:port",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

func translateError(fe validator.FieldError) string {
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field())
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
