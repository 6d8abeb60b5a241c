package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/shopspring/decimal"
)

// Vendor is a subcontracted fleet owner / service provider. Balance is the
// payable running total, written only by CreateLedgerEntry.
type Vendor struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Name       string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      string          `gorm:"size:100" json:"email"`
	Phone      string          `gorm:"size:20" json:"phone"`
	Address    string          `gorm:"type:text" json:"address"`
	PanNumber  string          `gorm:"size:50" json:"pan_number"`
	Notes      string          `gorm:"type:text" json:"notes"`
	Balance    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	IsActive   *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendor struct {
	Name      string `json:"name" binding:"required" validate:"required"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	PanNumber string `json:"pan_number"`
	Notes     string `json:"notes"`
}

func (v Vendor) GetId() int {
	return v.ID
}

// validate input for both create & update. (id = 0 for create)
func (input *NewVendor) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Vendor](ctx, businessId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Vendor](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateVendor(ctx context.Context, input *NewVendor) (*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if violations := utils.StructViolations(input); violations != nil {
		return nil, utils.NewValidationError(violations...)
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	vendor := Vendor{
		BusinessId: businessId,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Address:    input.Address,
		PanNumber:  input.PanNumber,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func UpdateVendor(ctx context.Context, id int, input *NewVendor) (*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}
	vendor, err := utils.FetchModel[Vendor](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&vendor).Updates(map[string]interface{}{
		"Name":      input.Name,
		"Email":     input.Email,
		"Phone":     input.Phone,
		"Address":   input.Address,
		"PanNumber": input.PanNumber,
		"Notes":     input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

func ToggleActiveVendor(ctx context.Context, id int, isActive bool) (*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	vendor, err := utils.FetchModel[Vendor](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&vendor).Update("IsActive", isActive).Error; err != nil {
		return nil, err
	}
	return vendor, nil
}

func GetVendor(ctx context.Context, id int) (*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Vendor](ctx, businessId, id)
}

func ListVendors(ctx context.Context) ([]*Vendor, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Vendor](ctx, businessId)
}
