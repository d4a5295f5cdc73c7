package fuelorder

import "time"

type FuelOrder struct {
	ID              int64      `gorm:"primaryKey"`
	CustomerID      int64      `gorm:"column:customer_id;not null;index"`
	TailNumber      string     `gorm:"column:tail_number;not null"`
	FuelType        string     `gorm:"column:fuel_type;not null"`
	QuantityGallons int64      `gorm:"column:quantity_gallons;not null"`
	OrderStatus     string     `gorm:"column:order_status;not null"`
	RequestedAt     time.Time  `gorm:"column:requested_at;default:now()"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;default:now()"`
}

type Receipt struct {
	ID          int64     `gorm:"primaryKey"`
	FuelOrderID int64     `gorm:"column:fuel_order_id;not null;uniqueIndex"`
	TotalCents  int64     `gorm:"column:total_cents;not null"`
	Currency    string    `gorm:"column:currency;not null;default:USD"`
	GeneratedAt time.Time `gorm:"column:generated_at;default:now()"`
}

type ReceiptLineItem struct {
	ID          int64  `gorm:"primaryKey"`
	ReceiptID   int64  `gorm:"column:receipt_id;not null;index"`
	Code        string `gorm:"column:code;not null"`
	Description string `gorm:"column:description"`
	Quantity    int64  `gorm:"column:quantity;not null;default:1"`
	AmountCents int64  `gorm:"column:amount_cents;not null"`
}
