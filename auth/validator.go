package auth

import (
	"chat-relay/errors"
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Username string `validate:"required,min=3,max=32"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12,max=72"`
}

// ValidateRegister checks the registration fields and maps failures onto
// the wire sentinels: password rules onto ErrInvalidPassword, everything
// else (username, email) onto ErrInvalidPayload.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				if fe.Field() == "Password" {
					return fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
				}
			}
			return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		}
		return err
	}
	if !isPasswordComplex(req.Password) {
		return fmt.Errorf("%w: must mix upper and lower case, digits and special characters",
			errors.ErrInvalidPassword)
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
