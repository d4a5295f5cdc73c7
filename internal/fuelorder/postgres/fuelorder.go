package postgres

import (
	"time"

	"github.com/flightbase/fbo-management/internal"
	fuelorderDatamodel "github.com/flightbase/fbo-management/internal/core/datamodel/fuelorder"
	"github.com/flightbase/fbo-management/internal/fuelorder"
	"gorm.io/gorm"
)

// FuelOrderRepository implements the fuelorder.Repository interface using GORM
type FuelOrderRepository struct {
	db *gorm.DB
}

func NewFuelOrderRepository(db *gorm.DB) fuelorder.Repository {
	return &FuelOrderRepository{db: db}
}

func (r *FuelOrderRepository) Create(order *fuelorder.FuelOrder) error {
	row := fuelorder.ToDataModel(order)
	if err := r.db.Create(row).Error; err != nil {
		return internal.NewStoreError("failed to create fuel order", err)
	}
	order.ID = row.ID
	return nil
}

func (r *FuelOrderRepository) GetByID(id int64) (*fuelorder.FuelOrder, error) {
	var row fuelorderDatamodel.FuelOrder
	err := r.db.Where("id = ?", id).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrOrderNotFound
		}
		return nil, internal.NewStoreError("failed to get fuel order", err)
	}
	return fuelorder.FromDataModel(&row), nil
}

func (r *FuelOrderRepository) GetByCustomerID(customerID int64, limit, offset int) ([]*fuelorder.FuelOrder, error) {
	var rows []*fuelorderDatamodel.FuelOrder
	err := r.db.Where("customer_id = ?", customerID).
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to list customer fuel orders", err)
	}
	return fuelorder.FromDataModelSlice(rows), nil
}

func (r *FuelOrderRepository) GetAllOrders(limit, offset int) ([]*fuelorder.FuelOrder, error) {
	var rows []*fuelorderDatamodel.FuelOrder
	err := r.db.
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to list fuel orders", err)
	}
	return fuelorder.FromDataModelSlice(rows), nil
}

func (r *FuelOrderRepository) UpdateStatus(id int64, status string, completedAt *time.Time) error {
	updates := map[string]interface{}{
		"order_status": status,
		"updated_at":   time.Now(),
	}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}

	result := r.db.Model(&fuelorderDatamodel.FuelOrder{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return internal.NewStoreError("failed to update fuel order status", result.Error)
	}
	if result.RowsAffected == 0 {
		return internal.ErrOrderNotFound
	}
	return nil
}

// SaveReceipt stores the receipt and its line items in one transaction.
func (r *FuelOrderRepository) SaveReceipt(receipt *fuelorder.Receipt) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		row := fuelorderDatamodel.Receipt{
			FuelOrderID: receipt.FuelOrderID,
			TotalCents:  receipt.TotalCents,
			Currency:    receipt.Currency,
			GeneratedAt: receipt.GeneratedAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		receipt.ID = row.ID

		for i := range receipt.LineItems {
			item := fuelorderDatamodel.ReceiptLineItem{
				ReceiptID:   row.ID,
				Code:        receipt.LineItems[i].Code,
				Description: receipt.LineItems[i].Description,
				Quantity:    receipt.LineItems[i].Quantity,
				AmountCents: receipt.LineItems[i].AmountCents,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			receipt.LineItems[i].ID = item.ID
			receipt.LineItems[i].ReceiptID = row.ID
		}
		return nil
	})
	if err != nil {
		return internal.NewStoreError("failed to save receipt", err)
	}
	return nil
}

func (r *FuelOrderRepository) GetReceiptByOrderID(orderID int64) (*fuelorder.Receipt, error) {
	var row fuelorderDatamodel.Receipt
	err := r.db.Where("fuel_order_id = ?", orderID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrReceiptNotFound
		}
		return nil, internal.NewStoreError("failed to get receipt", err)
	}

	var items []fuelorderDatamodel.ReceiptLineItem
	if err := r.db.Where("receipt_id = ?", row.ID).Order("id").Find(&items).Error; err != nil {
		return nil, internal.NewStoreError("failed to get receipt line items", err)
	}

	receipt := &fuelorder.Receipt{
		ID:          row.ID,
		FuelOrderID: row.FuelOrderID,
		TotalCents:  row.TotalCents,
		Currency:    row.Currency,
		GeneratedAt: row.GeneratedAt,
	}
	for _, item := range items {
		receipt.LineItems = append(receipt.LineItems, fuelorder.ReceiptLineItem{
			ID:          item.ID,
			ReceiptID:   item.ReceiptID,
			Code:        item.Code,
			Description: item.Description,
			Quantity:    item.Quantity,
			AmountCents: item.AmountCents,
		})
	}
	return receipt, nil
}
