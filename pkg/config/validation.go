package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that cannot be expressed in tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Bridge.Transport == "ssh" {
		if cfg.SSH.Address == "" {
			return fmt.Errorf("ssh.address: required when bridge.transport is ssh")
		}
		if cfg.SSH.User == "" {
			return fmt.Errorf("ssh.user: required when bridge.transport is ssh")
		}
	}

	// The password is answered verbatim followed by a newline
	if strings.ContainsAny(cfg.Login.Password, "\r\n") {
		return fmt.Errorf("login.password: must not contain line breaks")
	}
	if strings.ContainsAny(cfg.Login.Username, "\r\n") {
		return fmt.Errorf("login.username: must not contain line breaks")
	}

	return nil
}

// formatValidationError converts validator errors to a readable message.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s: is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s]", field, e.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s: must be greater than %s", field, e.Param()))
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s: must be %s %s", field, e.Tag(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %s validation", field, e.Tag()))
		}
	}

	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
