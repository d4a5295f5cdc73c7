package fuelorder

import (
	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/internal/core/common/validation"
)

type CreateOrderDTO struct {
	TailNumber      string `json:"tail_number"`
	FuelType        string `json:"fuel_type"`
	QuantityGallons int64  `json:"quantity_gallons"`
}

func (dto CreateOrderDTO) Validate() error {
	if err := validation.ValidateTailNumber(dto.TailNumber); err != nil {
		return err
	}
	if err := validation.ValidateFuelType(dto.FuelType, FuelTypes); err != nil {
		return err
	}
	if err := validation.ValidateFuelQuantity(dto.QuantityGallons); err != nil {
		return err
	}
	return nil
}

type UpdateStatusDTO struct {
	Status string `json:"status"`
}

func (dto UpdateStatusDTO) Validate() error {
	switch dto.Status {
	case OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return nil
	default:
		return internal.NewValidationFieldError("status",
			"status must be one of: in_progress, completed, cancelled",
			internal.ErrCodeInvalidOrderStatus)
	}
}
