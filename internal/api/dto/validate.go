package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("ticket_priority", validateTicketPriority)
	_ = v.RegisterValidation("ticket_status", validateTicketStatus)
	return v
}

func validateTicketPriority(fl validator.FieldLevel) bool {
	switch domain.TicketPriority(strings.ToLower(fl.Field().String())) {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh, domain.TicketPriorityUrgent:
		return true
	}
	return false
}

func validateTicketStatus(fl validator.FieldLevel) bool {
	switch domain.NormalizeStatus(fl.Field().String()) {
	case domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusPending,
		domain.TicketStatusResolved, domain.TicketStatusClosed:
		return true
	}
	return false
}

// Validate checks req against its validate tags. Violations become a 422 with
// one detail entry per offending field.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		return util.NewBadRequest("invalid request")
	}
	details := make(map[string]any, len(violations))
	for _, fe := range violations {
		details[fe.Field()] = describe(fe)
	}
	return util.NewValidationError("request validation failed", details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "ticket_priority":
		return "must be one of low, medium, high, urgent"
	case "ticket_status":
		return "must be one of open, in_progress, pending, resolved, closed"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
