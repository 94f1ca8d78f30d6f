package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-sync/internal/model"
)

// Custom tags understood by the request models.
const (
	TagService = "clinic_service"
	TagSlot    = "clinic_slot"
	TagRole    = "clinic_role"
)

// RegisterRules installs the clinic tags on v. slots returns the bookable
// time slots at validation time.
func RegisterRules(v *validator.Validate, slots func() []string) error {
	rules := map[string]validator.Func{
		TagService: func(fl validator.FieldLevel) bool {
			return model.ServiceType(fl.Field().String()).Valid()
		},
		TagSlot: func(fl validator.FieldLevel) bool {
			value := strings.TrimSpace(fl.Field().String())
			for _, s := range slots() {
				if s == value {
					return true
				}
			}
			return false
		},
		TagRole: func(fl validator.FieldLevel) bool {
			_, ok := model.ParseRole(fl.Field().String())
			return ok
		},
	}

	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", tag, err)
		}
	}

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return nil
}

// Validator validates structs tagged with `binding` outside of gin.
type Validator struct {
	v *validator.Validate
}

func New(slots []string) (*Validator, error) {
	v := validator.New()
	v.SetTagName("binding")
	if err := RegisterRules(v, func() []string { return slots }); err != nil {
		return nil, err
	}
	return &Validator{v: v}, nil
}

func (v *Validator) Validate(obj interface{}) error {
	return Describe(v.v.Struct(obj))
}

// Describe turns validator errors into one readable message.
func Describe(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case TagService:
		return fmt.Sprintf("%s is not a known service", field)
	case TagSlot:
		return fmt.Sprintf("%s is not an offered time slot", field)
	case TagRole:
		return fmt.Sprintf("%s is not a known role", field)
	default:
		return fmt.Sprintf("%s failed on %s", field, fe.Tag())
	}
}
