// Package validation registers the custom binding tags used by staff request bodies.
package validation

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mikepea/leaddesk/pkg/leaddesk/country"
	"github.com/mikepea/leaddesk/pkg/leaddesk/models"
)

var codePattern = regexp.MustCompile(`^[A-Z]{2}$`)

var registerOnce sync.Once

// Register installs the custom validators on gin's default validator engine.
// Safe to call more than once.
func Register() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("validation: unexpected binding engine %T", binding.Validator.Engine())
			return
		}
		err = RegisterOn(v)
	})
	return err
}

// RegisterOn installs the custom validators on v.
func RegisterOn(v *validator.Validate) error {
	if err := v.RegisterValidation("role", validateRole); err != nil {
		return err
	}
	return v.RegisterValidation("countrycode", validateCountryCode)
}

// validateRole accepts admin, desk, manager or agent.
func validateRole(fl validator.FieldLevel) bool {
	_, err := models.ParseRole(fl.Field().String())
	return err == nil
}

// validateCountryCode accepts a 2-letter code or a known country name.
func validateCountryCode(fl validator.FieldLevel) bool {
	return codePattern.MatchString(country.Normalize(fl.Field().String()))
}
