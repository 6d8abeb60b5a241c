package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VendorPayment records money paid out to a subcontracted vendor. The cash
// register row is tagged Payable, never Expense: settling a payable is not a
// new operating cost, the cost entered the books when the trip was booked.
type VendorPayment struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id"`
	PaymentNumber   string          `gorm:"size:255;not null" json:"payment_number"`
	SequenceNo      decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	PaymentDate     time.Time       `gorm:"not null;index" json:"payment_date"`
	VendorId        int             `gorm:"not null;index" json:"vendor_id"`
	AccountId       int             `gorm:"not null;index" json:"account_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentChannel  string          `gorm:"size:50" json:"payment_channel"`
	ReferenceNumber string          `gorm:"size:255" json:"reference_number"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedBy       int             `gorm:"index" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p VendorPayment) GetId() int {
	return p.ID
}

type NewVendorPayment struct {
	PaymentDate     time.Time       `json:"payment_date"`
	VendorId        int             `json:"vendor_id"`
	AccountId       int             `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentChannel  string          `json:"payment_channel"`
	ReferenceNumber string          `json:"reference_number"`
	Notes           string          `json:"notes"`
}

func (input *NewVendorPayment) validate(ctx context.Context, businessId string) ([]string, error) {
	var violations []string
	if input.PaymentDate.IsZero() {
		violations = append(violations, "payment date is required")
	}
	if !input.Amount.IsPositive() {
		violations = append(violations, "amount must be positive")
	}
	if input.VendorId <= 0 {
		violations = append(violations, "vendor id is required")
	} else if err := utils.ValidateActiveResourceId[Vendor](ctx, businessId, input.VendorId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			violations = append(violations, "vendor not found or inactive")
		} else {
			return nil, err
		}
	}
	if input.AccountId <= 0 {
		violations = append(violations, "account id is required")
	} else if err := utils.ValidateActiveResourceId[MoneyAccount](ctx, businessId, input.AccountId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			violations = append(violations, "money account not found or inactive")
		} else {
			return nil, err
		}
	}
	return violations, nil
}

func PayVendor(ctx context.Context, input *NewVendorPayment) (*VendorPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	violations, err := input.validate(ctx, businessId)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, utils.NewValidationError(violations...)
	}

	seqNo, err := utils.GetSequence[VendorPayment](ctx, businessId)
	if err != nil {
		return nil, err
	}

	payment := VendorPayment{
		BusinessId:      businessId,
		PaymentNumber:   fmt.Sprintf("VPY-%d", seqNo),
		SequenceNo:      decimal.NewFromInt(seqNo),
		PaymentDate:     input.PaymentDate,
		VendorId:        input.VendorId,
		AccountId:       input.AccountId,
		Amount:          input.Amount,
		PaymentChannel:  input.PaymentChannel,
		ReferenceNumber: input.ReferenceNumber,
		Notes:           input.Notes,
		CreatedBy:       userId,
	}

	var cashRow *CashTransaction
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		_, err := createLedgerEntryTx(ctx, tx, businessId, userId, &NewLedgerEntry{
			LedgerType:      LedgerTypeVendor,
			EntityId:        payment.VendorId,
			EntryDate:       payment.PaymentDate,
			Description:     "Payment made",
			Debit:           payment.Amount,
			ReferenceNumber: payment.PaymentNumber,
			TransactionType: "vendor_payment",
		})
		if err != nil {
			return err
		}

		_, err = createLedgerEntryTx(ctx, tx, businessId, userId, &NewLedgerEntry{
			LedgerType:      LedgerTypeCashBank,
			EntityId:        payment.AccountId,
			EntryDate:       payment.PaymentDate,
			Description:     "Vendor payment withdrawal",
			Debit:           payment.Amount,
			ReferenceNumber: payment.PaymentNumber,
			TransactionType: "vendor_payment",
		})
		if err != nil {
			return err
		}

		cashRow, err = recordCashTransactionTx(ctx, tx, businessId, userId, &NewCashTransaction{
			TransactionDate: payment.PaymentDate,
			Amount:          payment.Amount,
			Direction:       CashDirectionOut,
			SourceModule:    CashSourcePayable,
			SourceId:        payment.ID,
			PaymentMode:     MapPaymentChannel(payment.PaymentChannel),
			ReferenceNumber: payment.PaymentNumber,
			Notes:           payment.Notes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	publishCashMovement(ctx, cashRow)
	return &payment, nil
}

func GetVendorPayment(ctx context.Context, id int) (*VendorPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[VendorPayment](ctx, businessId, id)
}

func ListVendorPayments(ctx context.Context) ([]*VendorPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[VendorPayment](ctx, businessId)
}
