package httpserver

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/Skotchmaster/shop_auth/pkg/autherr"
)

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (rv *RequestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", autherr.ErrValidation, err)
	}
	return nil
}
