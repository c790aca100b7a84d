package identifier

import (
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

// Struct tags registered by RegisterValidations.
const (
	TagCRNumber  = "bh_cr"
	TagVATNumber = "bh_vat"
	TagPhone     = "bh_phone"
	TagIBAN      = "bh_iban"
)

var checks = map[string]func(string) bool{
	TagCRNumber:  ValidateCRNumber,
	TagVATNumber: ValidateVATNumber,
	TagPhone:     ValidateBahrainPhone,
	TagIBAN:      ValidateIBAN,
}

// Check returns the predicate registered for tag.
func Check(tag string) (func(string) bool, bool) {
	fn, ok := checks[tag]
	return fn, ok
}

// RegisterValidations adds the Bahraini identifier tags to v so request
// structs can use e.g. `validate:"required,bh_phone"`.
func RegisterValidations(v *validator.Validate) error {
	for tag, fn := range checks {
		if err := v.RegisterValidation(tag, fieldCheck(fn)); err != nil {
			return errors.Wrapf(err, "register %s", tag)
		}
	}
	return nil
}

// NewValidator returns a validator with the identifier tags registered.
func NewValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterValidations(v); err != nil {
		return nil, err
	}
	return v, nil
}

func fieldCheck(fn func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	}
}
