package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var formValidator = validator.New(validator.WithRequiredStructEnabled())

// signupForm is the registration form after trimming.
type signupForm struct {
	Email       string `validate:"required,email,max=254"`
	Password    string `validate:"required,min=8,max=72"` // bcrypt ignores bytes past 72
	DisplayName string `validate:"max=100"`
}

// signupMessages maps "Field.tag" to the message shown under the field.
var signupMessages = map[string]string{
	"Email.required":    "Email is required.",
	"Email.email":       "Please enter a valid email address.",
	"Email.max":         "Email is too long.",
	"Password.required": "Password is required.",
	"Password.min":      "Password must be at least 8 characters.",
	"Password.max":      "Password is too long (max 72 characters).",
	"DisplayName.max":   "Name is too long (max 100 characters).",
}

// signupFields maps struct fields to form input names.
var signupFields = map[string]string{
	"Email":       "email",
	"Password":    "password",
	"DisplayName": "displayName",
}

// validate returns field errors keyed by input name, or nil.
func (f signupForm) validate() map[string]string {
	err := formValidator.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"email": genericError}
	}

	errs := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := signupFields[fe.Field()]
		if _, seen := errs[field]; seen {
			continue
		}
		msg, ok := signupMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "This field is invalid."
		}
		errs[field] = msg
	}
	return errs
}
