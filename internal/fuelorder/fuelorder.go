package fuelorder

import (
	"time"

	fuelorderDatamodel "github.com/flightbase/fbo-management/internal/core/datamodel/fuelorder"
)

// ResourceType is the resource identifier fuel orders register with the
// access control ownership registry and the one resource-scoped grants
// refer to.
const ResourceType = "fuel_order"

type FuelOrder struct {
	ID              int64      `json:"id"`
	CustomerID      int64      `json:"customer_id"`
	TailNumber      string     `json:"tail_number"`
	FuelType        string     `json:"fuel_type"`
	QuantityGallons int64      `json:"quantity_gallons"`
	OrderStatus     string     `json:"order_status"`
	RequestedAt     time.Time  `json:"requested_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

var FuelTypes = []string{"jet_a", "avgas_100ll", "saf"}

func (o *FuelOrder) CanStart() bool {
	return o.OrderStatus == OrderStatusPending
}

func (o *FuelOrder) CanComplete() bool {
	return o.OrderStatus == OrderStatusInProgress
}

func (o *FuelOrder) CanCancel() bool {
	return o.OrderStatus == OrderStatusPending || o.OrderStatus == OrderStatusInProgress
}

func (o *FuelOrder) Complete() {
	now := time.Now()
	o.OrderStatus = OrderStatusCompleted
	o.CompletedAt = &now
	o.UpdatedAt = now
}

type Receipt struct {
	ID          int64             `json:"id"`
	FuelOrderID int64             `json:"fuel_order_id"`
	TotalCents  int64             `json:"total_cents"`
	Currency    string            `json:"currency"`
	GeneratedAt time.Time         `json:"generated_at"`
	LineItems   []ReceiptLineItem `json:"line_items"`
}

type ReceiptLineItem struct {
	ID          int64  `json:"id"`
	ReceiptID   int64  `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	AmountCents int64  `json:"amount_cents"`
}

func ToDataModel(o *FuelOrder) *fuelorderDatamodel.FuelOrder {
	return &fuelorderDatamodel.FuelOrder{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		TailNumber:      o.TailNumber,
		FuelType:        o.FuelType,
		QuantityGallons: o.QuantityGallons,
		OrderStatus:     o.OrderStatus,
		RequestedAt:     o.RequestedAt,
		CompletedAt:     o.CompletedAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func FromDataModel(o *fuelorderDatamodel.FuelOrder) *FuelOrder {
	return &FuelOrder{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		TailNumber:      o.TailNumber,
		FuelType:        o.FuelType,
		QuantityGallons: o.QuantityGallons,
		OrderStatus:     o.OrderStatus,
		RequestedAt:     o.RequestedAt,
		CompletedAt:     o.CompletedAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func FromDataModelSlice(orders []*fuelorderDatamodel.FuelOrder) []*FuelOrder {
	result := make([]*FuelOrder, len(orders))
	for i, o := range orders {
		result[i] = FromDataModel(o)
	}
	return result
}
