package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/shopspring/decimal"
)

// MoneyAccount is a cash box or bank account. CurrentBalance is written only
// by CreateLedgerEntry (CashBank ledger).
type MoneyAccount struct {
	ID             int              `gorm:"primary_key" json:"id"`
	BusinessId     string           `gorm:"index;not null" json:"business_id"`
	AccountType    MoneyAccountType `gorm:"type:enum('cash','bank');default:'cash';size:12;not null" json:"account_type" binding:"required"`
	AccountName    string           `gorm:"index;size:100;not null" json:"account_name" binding:"required"`
	AccountNumber  string           `gorm:"size:50" json:"account_number"`
	BankName       string           `gorm:"size:100" json:"bank_name"`
	IfscCode       string           `gorm:"size:50" json:"ifsc_code"`
	Description    string           `gorm:"type:text" json:"description"`
	CurrentBalance decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"current_balance"`
	IsActive       *bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMoneyAccount struct {
	AccountType   MoneyAccountType `json:"account_type" binding:"required" validate:"required"`
	AccountName   string           `json:"account_name" binding:"required" validate:"required"`
	AccountNumber string           `json:"account_number"`
	BankName      string           `json:"bank_name"`
	IfscCode      string           `json:"ifsc_code"`
	Description   string           `json:"description"`
}

func (ma MoneyAccount) GetId() int {
	return ma.ID
}

// validate input for both create & update. (id = 0 for create)
func (input *NewMoneyAccount) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[MoneyAccount](ctx, businessId, id); err != nil {
			return err
		}
	}
	if !input.AccountType.Valid() {
		return utils.NewValidationError("account type must be cash or bank")
	}
	if err := utils.ValidateUnique[MoneyAccount](ctx, businessId, "account_name", input.AccountName, id); err != nil {
		return err
	}
	return nil
}

func CreateMoneyAccount(ctx context.Context, input *NewMoneyAccount) (*MoneyAccount, error) {
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

	account := MoneyAccount{
		BusinessId:    businessId,
		AccountType:   input.AccountType,
		AccountName:   input.AccountName,
		AccountNumber: input.AccountNumber,
		BankName:      input.BankName,
		IfscCode:      input.IfscCode,
		Description:   input.Description,
		IsActive:      utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func UpdateMoneyAccount(ctx context.Context, id int, input *NewMoneyAccount) (*MoneyAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}
	account, err := utils.FetchModel[MoneyAccount](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&account).Updates(map[string]interface{}{
		"AccountType":   input.AccountType,
		"AccountName":   input.AccountName,
		"AccountNumber": input.AccountNumber,
		"BankName":      input.BankName,
		"IfscCode":      input.IfscCode,
		"Description":   input.Description,
	}).Error
	if err != nil {
		return nil, err
	}
	return account, nil
}

func ToggleActiveMoneyAccount(ctx context.Context, id int, isActive bool) (*MoneyAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	account, err := utils.FetchModel[MoneyAccount](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&account).Update("IsActive", isActive).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func GetMoneyAccount(ctx context.Context, id int) (*MoneyAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[MoneyAccount](ctx, businessId, id)
}

func ListMoneyAccounts(ctx context.Context) ([]*MoneyAccount, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[MoneyAccount](ctx, businessId)
}
