package models

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator with the model-specific tags registered.
//
//	maxwords=N  string holds at most N whitespace-separated words
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for an empty tag or nil func.
	_ = validate.RegisterValidation("maxwords", validateMaxWords)

	return validate
}

func validateMaxWords(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}

	return WordCount(fl.Field().String()) <= limit
}
