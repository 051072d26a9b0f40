// Package validation checks request payloads with struct tags and holds the
// account field rules.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	usernameMaxLen = 150
	passwordMinLen = 8
	passwordMaxLen = 128
)

// Letters, digits and @/./+/-/_ only.
var usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)

var (
	once     sync.Once
	validate *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return ValidateUsername(fl.Field().String()) == nil
		})
		_ = validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
			return ValidatePassword(fl.Field().String()) == nil
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// Struct validates v against its `validate` tags and returns the first
// violation as a readable error.
func Struct(v any) error {
	err := engine().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	return describe(verrs[0])
}

func describe(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Errorf("%s: this field may not be blank", field)
	case "min":
		return fmt.Errorf("%s: must be at least %s%s", field, fe.Param(), unit(fe))
	case "max":
		return fmt.Errorf("%s: must be at most %s%s", field, fe.Param(), unit(fe))
	case "gte":
		return fmt.Errorf("%s: must be greater than or equal to %s", field, fe.Param())
	case "email":
		return fmt.Errorf("%s: enter a valid email address", field)
	case "username":
		return fmt.Errorf("%s: may contain only letters, numbers, and @/./+/-/_ characters", field)
	case "password":
		return fmt.Errorf("%s: must be between %d and %d characters", field, passwordMinLen, passwordMaxLen)
	default:
		return fmt.Errorf("%s: failed %s validation", field, fe.Tag())
	}
}

func unit(fe validator.FieldError) string {
	if fe.Kind() == reflect.String {
		return " characters"
	}
	return ""
}

// ValidateUsername checks length and the allowed character set.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > usernameMaxLen {
		return fmt.Errorf("username must be at most %d characters", usernameMaxLen)
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may contain only letters, numbers, and @/./+/-/_ characters")
	}
	return nil
}

// ValidatePassword enforces length bounds only.
func ValidatePassword(password string) error {
	n := len([]rune(password))
	if n < passwordMinLen {
		return fmt.Errorf("password must be at least %d characters", passwordMinLen)
	}
	if n > passwordMaxLen {
		return fmt.Errorf("password must be at most %d characters", passwordMaxLen)
	}
	return nil
}
