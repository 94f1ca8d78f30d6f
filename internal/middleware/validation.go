package middleware

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	clinicvalidator "github.com/jwalitptl/clinic-sync/pkg/validator"
)

// RegisterValidation installs the clinic tags on gin's binding validator so
// ShouldBindJSON enforces them.
func RegisterValidation(slots func() []string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return clinicvalidator.RegisterRules(v, slots)
}
