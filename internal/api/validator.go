package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	app_errors "portfolio-ai/backend/internal/errors"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// getInstance returns the shared validator. It caches struct metadata, so one
// instance serves every request.
func getInstance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		// Report fields by their wire names so callers see `messages`, not `Messages`.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("jsoncontainer", isJSONContainer)
	})
	return validate
}

// isJSONContainer accepts a raw JSON value that is an array or an object.
// Anything finer is left to the upstream.
func isJSONContainer(fl validator.FieldLevel) bool {
	raw, ok := fl.Field().Interface().(json.RawMessage)
	if !ok {
		return false
	}
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

// validateRequest checks payload against its `validate` tags and wraps any
// failure in app_errors.ErrValidation.
func validateRequest(payload any) error {
	err := getInstance().Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: could not validate request: %s", app_errors.ErrValidation, err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		switch fieldErr.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fieldErr.Field()))
		case "jsoncontainer":
			messages = append(messages, fmt.Sprintf("%s must be an array or an object", fieldErr.Field()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", fieldErr.Field(), fieldErr.Param()))
		default:
			messages = append(messages, fmt.Sprintf("field '%s' failed on the '%s' tag", fieldErr.Field(), fieldErr.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", app_errors.ErrValidation, strings.Join(messages, "; "))
}
