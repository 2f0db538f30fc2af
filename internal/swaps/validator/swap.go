package validator

import (
	"slotswapper/pkg/logger"
	"slotswapper/pkg/model"
	"slotswapper/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type SwapValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSwapValidator(log *logger.Logger) *SwapValidator {
	log.Info("Swap validator initialized successfully")

	return &SwapValidator{
		validate: validation.New(),
		logger:   log,
	}
}

func (v *SwapValidator) ValidatePropose(req *model.ProposeRequest) error {
	return validation.Struct(v.validate, req)
}

func (v *SwapValidator) ValidateRespond(req *model.RespondRequest) error {
	return validation.Struct(v.validate, req)
}
