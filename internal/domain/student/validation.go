package student

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "department", func(fl validator.FieldLevel) bool {
		return Department(fl.Field().String()).IsValid()
	})
	mustRegister(v, "year", func(fl validator.FieldLevel) bool {
		return Year(fl.Field().String()).IsValid()
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// Validate checks the record invariants. The first failing field decides
// the error, in declaration order.
func (r Record) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return shared.WrapError("student", "Validate", shared.ErrValidation, "invalid record", err)
	}
	return r.fieldError(fieldErrs[0])
}

// fieldError maps a validator failure onto the domain error for that field.
func (r Record) fieldError(fe validator.FieldError) error {
	switch fe.StructField() {
	case "RegNo":
		return shared.ErrEmptyRegNo
	case "Name":
		return shared.ErrEmptyName
	case "ProfileURL":
		return shared.ErrEmptyProfileURL
	case "Department":
		return shared.WrapError("student", "Validate", shared.ErrValidation,
			"unknown department "+string(r.Department), shared.ErrUnknownDepartment)
	case "Year":
		return shared.WrapError("student", "Validate", shared.ErrValidation,
			"unknown year "+string(r.Year), shared.ErrUnknownYear)
	case "SolvedCount":
		return shared.ErrNegativeSolvedCount
	default:
		return shared.NewDomainError("student", "Validate", shared.ErrValidation,
			fe.Field()+" failed "+fe.Tag())
	}
}
