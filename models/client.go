package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/shopspring/decimal"
)

// Client is a freight customer. Balance is the receivable running total and is
// written only by CreateLedgerEntry; every other workflow goes through the
// ledger to change it.
type Client struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Email         string          `gorm:"size:100" json:"email"`
	Phone         string          `gorm:"size:20" json:"phone"`
	Address       string          `gorm:"type:text" json:"address"`
	GstNumber     string          `gorm:"size:50" json:"gst_number"`
	CreditDays    int             `gorm:"default:0" json:"credit_days"`
	Notes         string          `gorm:"type:text" json:"notes"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewClient struct {
	Name       string `json:"name" binding:"required" validate:"required"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	GstNumber  string `json:"gst_number"`
	CreditDays int    `json:"credit_days"`
	Notes      string `json:"notes"`
}

func (c Client) GetId() int {
	return c.ID
}

// validate input for both create & update. (id = 0 for create)
func (input *NewClient) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Client](ctx, businessId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Client](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Email != "" {
		if err := utils.ValidateUnique[Client](ctx, businessId, "email", input.Email, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateClient(ctx context.Context, input *NewClient) (*Client, error) {
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

	client := Client{
		BusinessId: businessId,
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		Address:    input.Address,
		GstNumber:  input.GstNumber,
		CreditDays: input.CreditDays,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func UpdateClient(ctx context.Context, id int, input *NewClient) (*Client, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}
	client, err := utils.FetchModel[Client](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// Balance is deliberately absent: only the ledger writes it.
	err = db.WithContext(ctx).Model(&client).Updates(map[string]interface{}{
		"Name":       input.Name,
		"Email":      input.Email,
		"Phone":      input.Phone,
		"Address":    input.Address,
		"GstNumber":  input.GstNumber,
		"CreditDays": input.CreditDays,
		"Notes":      input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}
	return client, nil
}

func ToggleActiveClient(ctx context.Context, id int, isActive bool) (*Client, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	client, err := utils.FetchModel[Client](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&client).Update("IsActive", isActive).Error; err != nil {
		return nil, err
	}
	return client, nil
}

func GetClient(ctx context.Context, id int) (*Client, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Client](ctx, businessId, id)
}

func ListClients(ctx context.Context) ([]*Client, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Client](ctx, businessId)
}
