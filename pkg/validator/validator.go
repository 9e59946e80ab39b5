package validator

import (
	"github.com/go-playground/validator/v10"
)

// ErrorResponse describes one failed struct rule.
type ErrorResponse struct {
	FailedField string
	Tag         string
	Param       string
}

var validate = validator.New()

// ValidateStruct runs the tag-declared rules on data and returns every
// failure, or an empty slice when the struct is valid.
func ValidateStruct(data interface{}) []*ErrorResponse {
	var errs []*ErrorResponse
	if err := validate.Struct(data); err != nil {
		for _, ferr := range err.(validator.ValidationErrors) {
			errs = append(errs, &ErrorResponse{
				FailedField: ferr.Field(),
				Tag:         ferr.Tag(),
				Param:       ferr.Param(),
			})
		}
	}
	return errs
}
