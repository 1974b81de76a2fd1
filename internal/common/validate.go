package common

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs struct-tag validation on v and maps failures to an AppError.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var fields []string
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace())
			}
		}
		return NewAppError("VALIDATION", "invalid request payload", http.StatusBadRequest, err).withDetails(fields)
	}
	return nil
}

func (e *AppError) withDetails(details any) *AppError {
	e.Details = details
	return e
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		*target = verrs
		return true
	}
	return false
}
