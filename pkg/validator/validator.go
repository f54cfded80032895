// Package validator wraps go-playground/validator with the custom rules the
// API payloads use.
package validator

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// FieldError is one failed rule, shaped for a JSON error response.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

var validate = validator.New()

func init() {
	// uuid_required rejects the zero UUID, which BodyParser produces for a
	// missing field.
	validate.RegisterValidation("uuid_required", func(fl validator.FieldLevel) bool {
		if id, ok := fl.Field().Interface().(uuid.UUID); ok {
			return id != uuid.Nil
		}
		return false
	})
}

func ValidateStruct(data interface{}) []FieldError {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var out []FieldError
	for _, fe := range err.(validator.ValidationErrors) {
		out = append(out, FieldError{
			Field: fe.StructNamespace(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}
