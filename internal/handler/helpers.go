package handler

import (
	"github.com/go-playground/validator/v10"
)

// formatValidationErrors converts validator errors into a field to rule map
// for the error response details.
func formatValidationErrors(err error) map[string]interface{} {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	details := make(map[string]interface{}, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}
