package application

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DistrictPlaceholder is replaced with the district id in live feed URL
// templates.
const DistrictPlaceholder = "{district}"

// RegisterElectionValidators registers custom validation functions with
// the validator instance for use in election configuration validation.
// RegisterElectionValidators adds the pactid and urltemplate validators
// that can be referenced in struct tags.
// RegisterElectionValidators returns an error if any validator
// registration fails.
func RegisterElectionValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("pactid", validatePactID); err != nil {
		return fmt.Errorf("failed to register pactid validator: %w", err)
	}

	if err := v.RegisterValidation("urltemplate", validateURLTemplate); err != nil {
		return fmt.Errorf("failed to register urltemplate validator: %w", err)
	}

	return nil
}

// validatePactID accepts the short list codes used on ballots: one to
// sixteen upper-case letters, digits, or underscores, as in "A", "JK" or
// "IND_12".
func validatePactID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if id == "" || len(id) > 16 {
		return false
	}
	for _, ch := range id {
		switch {
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '_':
		default:
			return false
		}
	}
	return true
}

// validateURLTemplate checks that a live feed template contains the
// district placeholder and is an absolute http(s) URL once expanded.
func validateURLTemplate(fl validator.FieldLevel) bool {
	tmpl := fl.Field().String()
	if !strings.Contains(tmpl, DistrictPlaceholder) {
		return false
	}

	u, err := url.ParseRequestURI(strings.ReplaceAll(tmpl, DistrictPlaceholder, "6010"))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
