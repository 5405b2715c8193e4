package handlers

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"taskboard/api/internal/apperr"
)

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors name fields by their json tag.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
}

func (h HandlerSet) respondError(c *gin.Context, err error) {
	status, body := apperr.Render(err)
	if status >= 500 {
		h.log.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the body into dest and reports failures as validation errors.
func bindJSON(c *gin.Context, dest any) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return validationFailure(err)
	}
	return nil
}

func validationFailure(err error) *apperr.Error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = validationMessage(fe)
		}
		return apperr.New(apperr.KindValidation, "validation_error", "validation failed").WithDetails(details)
	}
	if errors.Is(err, io.EOF) {
		return apperr.New(apperr.KindValidation, "validation_error", "request body is required")
	}
	return apperr.Wrap(apperr.KindValidation, "validation_error", err, "invalid request body")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
