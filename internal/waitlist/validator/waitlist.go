package validator

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"resourcehub/pkg/logger"
	"resourcehub/pkg/model"
)

type WaitlistValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewWaitlistValidator(log *logger.Logger) *WaitlistValidator {
	return &WaitlistValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *WaitlistValidator) Validate(entry *model.WaitlistEntry) error {
	if err := v.validate.Struct(entry); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			first := validationErrs[0]
			switch first.Tag() {
			case "required":
				return fmt.Errorf("%s is required", first.Field())
			case "mongodb":
				return fmt.Errorf("%s must be a valid MongoDB ObjectID", first.Field())
			case "gtfield":
				return fmt.Errorf("%s must be after %s", first.Field(), first.Param())
			case "oneof":
				return fmt.Errorf("%s must be one of: %s", first.Field(), first.Param())
			}
			return fmt.Errorf("%s is invalid", first.Field())
		}
		return err
	}
	return nil
}
