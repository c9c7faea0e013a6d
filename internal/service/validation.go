package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/school-calendar-api/internal/models"
	appErrors "github.com/noah-isme/school-calendar-api/pkg/errors"
)

// NewValidator returns a validator that reports JSON field names and knows the event enums.
func NewValidator() *validator.Validate {
	validate := validator.New()
	registerEventValidations(validate)
	return validate
}

func registerEventValidations(validate *validator.Validate) {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if opt, ok := field.Interface().(models.OptionalString); ok && opt.Value != nil {
			return *opt.Value
		}
		return nil
	}, models.OptionalString{})
	validate.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return models.EventType(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("target_group", func(fl validator.FieldLevel) bool {
		return models.TargetGroup(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("event_status", func(fl validator.FieldLevel) bool {
		return models.EventStatus(fl.Field().String()).Valid()
	})
}

// validationError converts validator output into a VALIDATION_ERROR naming the first bad field.
func validationError(err error, fallback string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fallback)
	}
	fe := fieldErrs[0]
	appErr := appErrors.Validation(fe.Field(), fieldMessage(fe))
	appErr.Err = err
	return appErr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "event_type":
		return "event_type must be one of academic, student_activity, external, meeting, exam, hr, admin, policy_plan"
	case "target_group":
		return "target_group must be one of admin, teacher, student, all"
	case "event_status":
		return "status must be one of pending, in_progress, completed, cancelled"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
