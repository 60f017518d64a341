// CardsGameWeb - Trading Card Fusion Workspace and Relay
// Copyright 2026 Quang Nhat (QuangNhat10)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/QuangNhat10/CardsGameWeb

// Package validation provides struct validation using go-playground/validator
// v10 behind a thread-safe singleton instance (the validator caches struct
// metadata, so sharing one instance matters).
//
// Example:
//
//	type MergeRequest struct {
//	    CardIDs []string `validate:"len=2,dive,serverid"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    // err.Error() lists every failing field
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/QuangNhat10/CardsGameWeb/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// instance returns the shared validator.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Strict ^[a-fA-F0-9]{24}$. The built-in hexadecimal tag accepts
		// an optional 0x prefix, which the backend's id format does not.
		_ = validate.RegisterValidation("serverid", func(fl validator.FieldLevel) bool {
			return models.IsServerID(fl.Field().String())
		})
	})
	return validate
}

// FieldError is a single field validation failure.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// Error returns the human-readable message.
func (e FieldError) Error() string {
	return e.Message
}

// StructError collects every failing field of one ValidateStruct call.
type StructError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *StructError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		messages = append(messages, f.Message)
	}
	return strings.Join(messages, "; ")
}

// ValidateStruct validates s against its `validate` tags. Returns nil when
// valid, a *StructError describing every failing field otherwise.
func ValidateStruct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: the input was not a validatable struct
		return fmt.Errorf("validation internal error: %w", err)
	}

	structErr := &StructError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		structErr.Fields = append(structErr.Fields, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fieldMessage(fe),
		})
	}
	return structErr
}

// fieldMessage builds a readable message for one field failure.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "len":
		return fmt.Sprintf("%s must have length %s", fe.Field(), fe.Param())
	case "hexadecimal":
		return fmt.Sprintf("%s must be hexadecimal", fe.Field())
	case "serverid":
		return fmt.Sprintf("%s must be a 24-character hexadecimal id", fe.Field())
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
