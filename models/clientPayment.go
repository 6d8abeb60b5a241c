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

// ClientPayment records money received from a client. One receipt moves three
// things atomically: the client ledger (debit, receivable down), the money
// account ledger (credit, balance up) and exactly one cash register row
// (Receivable / In).
type ClientPayment struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id"`
	PaymentNumber   string          `gorm:"size:255;not null" json:"payment_number"`
	SequenceNo      decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	PaymentDate     time.Time       `gorm:"not null;index" json:"payment_date"`
	ClientId        int             `gorm:"not null;index" json:"client_id"`
	AccountId       int             `gorm:"not null;index" json:"account_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentChannel  string          `gorm:"size:50" json:"payment_channel"`
	ReferenceNumber string          `gorm:"size:255" json:"reference_number"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedBy       int             `gorm:"index" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p ClientPayment) GetId() int {
	return p.ID
}

type NewClientPayment struct {
	PaymentDate     time.Time       `json:"payment_date"`
	ClientId        int             `json:"client_id"`
	AccountId       int             `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentChannel  string          `json:"payment_channel"`
	ReferenceNumber string          `json:"reference_number"`
	Notes           string          `json:"notes"`
}

func (input *NewClientPayment) validate(ctx context.Context, businessId string) ([]string, error) {
	var violations []string
	if input.PaymentDate.IsZero() {
		violations = append(violations, "payment date is required")
	}
	if !input.Amount.IsPositive() {
		violations = append(violations, "amount must be positive")
	}
	if input.ClientId <= 0 {
		violations = append(violations, "client id is required")
	} else if err := utils.ValidateActiveResourceId[Client](ctx, businessId, input.ClientId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			violations = append(violations, "client not found or inactive")
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

func ReceiveClientPayment(ctx context.Context, input *NewClientPayment) (*ClientPayment, error) {
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

	seqNo, err := utils.GetSequence[ClientPayment](ctx, businessId)
	if err != nil {
		return nil, err
	}

	payment := ClientPayment{
		BusinessId:      businessId,
		PaymentNumber:   fmt.Sprintf("RCP-%d", seqNo),
		SequenceNo:      decimal.NewFromInt(seqNo),
		PaymentDate:     input.PaymentDate,
		ClientId:        input.ClientId,
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
			LedgerType:      LedgerTypeClient,
			EntityId:        payment.ClientId,
			EntryDate:       payment.PaymentDate,
			Description:     "Payment received",
			Debit:           payment.Amount,
			ReferenceNumber: payment.PaymentNumber,
			TransactionType: "client_payment",
		})
		if err != nil {
			return err
		}

		_, err = createLedgerEntryTx(ctx, tx, businessId, userId, &NewLedgerEntry{
			LedgerType:      LedgerTypeCashBank,
			EntityId:        payment.AccountId,
			EntryDate:       payment.PaymentDate,
			Description:     "Client payment deposit",
			Credit:          payment.Amount,
			ReferenceNumber: payment.PaymentNumber,
			TransactionType: "client_payment",
		})
		if err != nil {
			return err
		}

		cashRow, err = recordCashTransactionTx(ctx, tx, businessId, userId, &NewCashTransaction{
			TransactionDate: payment.PaymentDate,
			Amount:          payment.Amount,
			Direction:       CashDirectionIn,
			SourceModule:    CashSourceReceivable,
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

func GetClientPayment(ctx context.Context, id int) (*ClientPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[ClientPayment](ctx, businessId, id)
}

func ListClientPayments(ctx context.Context) ([]*ClientPayment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[ClientPayment](ctx, businessId)
}
