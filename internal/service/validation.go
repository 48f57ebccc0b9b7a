package service

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
)

// UpsertRuleRequest is the payload for creating or updating an approval rule.
// An empty ProjectID targets the global scope. A nil MaxAmount is unbounded.
type UpsertRuleRequest struct {
	ProjectID    string       `json:"project_id" validate:"omitempty,max=64,not_blank"`
	MinAmount    json.Number  `json:"min_amount" validate:"required,amount,storable"`
	MaxAmount    *json.Number `json:"max_amount" validate:"omitempty,decimal,storable"`
	ApproverRole string       `json:"approver_role" validate:"required,approver_role"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("storable", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && policy.Storable(d)
	})
	_ = v.RegisterValidation("not_blank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("approver_role", func(fl validator.FieldLevel) bool {
		_, err := policy.ParseRole(fl.Field().String())
		return err == nil
	})
	return v
}

// Rule validates the request and converts it to a rule without an id.
func (r *UpsertRuleRequest) Rule() (policy.ApprovalRule, error) {
	if err := validate.Struct(r); err != nil {
		return policy.ApprovalRule{}, validationError(err)
	}

	minAmount, _ := decimal.NewFromString(r.MinAmount.String())
	rule := policy.ApprovalRule{
		Scope:     policy.ProjectScope(r.ProjectID),
		MinAmount: minAmount,
		Role:      policy.Role(r.ApproverRole),
	}
	if r.MaxAmount != nil {
		maxAmount, _ := decimal.NewFromString(r.MaxAmount.String())
		rule.MaxAmount = decimal.NewNullDecimal(maxAmount)
	}
	return rule, nil
}

// ParseAmount parses a lookup amount. Negative amounts are accepted and
// simply match no rule.
func ParseAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Decimal{}, errors.InvalidInput("amount", "This field is required")
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, errors.InvalidInput("amount", "Must be a decimal number")
	}
	return d, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request")
	}
	details := make([]errors.FieldError, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, errors.FieldError{Field: e.Field(), Message: validationMessage(e)})
	}
	return errors.Validation(details)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "amount":
		return "Must be a non-negative decimal number"
	case "decimal":
		return "Must be a decimal number"
	case "storable":
		return "Must have at most 2 decimal places and at most 16 integer digits"
	case "not_blank":
		return "Must not be blank"
	case "approver_role":
		return "Must be one of: manager, director, client_owner"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	default:
		return "Invalid value"
	}
}
