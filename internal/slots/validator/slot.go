package validator

import (
	"slotswapper/pkg/logger"
	"slotswapper/pkg/model"
	"slotswapper/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type SlotValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSlotValidator(log *logger.Logger) *SlotValidator {
	log.Info("Slot validator initialized successfully")

	return &SlotValidator{
		validate: validation.New(),
		logger:   log,
	}
}

func (v *SlotValidator) Validate(slot *model.SlotCreate) error {
	return validation.Struct(v.validate, slot)
}

// ValidateUpdate checks the patch on its own. Time ordering against the
// stored slot is checked by the caller once the patch is merged.
func (v *SlotValidator) ValidateUpdate(update *model.SlotUpdate) error {
	if err := validation.Struct(v.validate, update); err != nil {
		return err
	}

	if update.StartTime != nil && update.EndTime != nil && !update.EndTime.After(*update.StartTime) {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "end_time",
				Message: "end_time must be after start_time",
			},
		}
	}

	return nil
}

// ValidateRange checks a merged slot.
func (v *SlotValidator) ValidateRange(slot *model.Slot) error {
	if !slot.EndTime.After(slot.StartTime) {
		return validation.ValidationErrors{
			validation.ValidationError{
				Field:   "end_time",
				Message: "end_time must be after start_time",
			},
		}
	}
	return nil
}
