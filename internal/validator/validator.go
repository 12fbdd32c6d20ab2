// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"coffeeshop/internal/lockout"
	"coffeeshop/internal/models"
	"coffeeshop/internal/services"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("user_role", validateUserRole)
		_ = v.RegisterValidation("lock_reason", validateLockReason)
		_ = v.RegisterValidation("strong_password", validateStrongPassword)
	}
}

func validateUserRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).Valid()
}

// validateLockReason counts characters after trimming, matching the service check.
func validateLockReason(fl validator.FieldLevel) bool {
	return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= lockout.MinLockReasonLength
}

func validateStrongPassword(fl validator.FieldLevel) bool {
	return services.ValidatePasswordStrength(fl.Field().String()) == nil
}
