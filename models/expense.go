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

// Expense is a direct operating cost paid on the spot: fuel, toll,
// maintenance, office. It debits the paying money account's ledger and writes
// one cash register row tagged Expense / Out.
type Expense struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BusinessId      string          `gorm:"index;not null" json:"business_id"`
	ExpenseNumber   string          `gorm:"size:255;not null" json:"expense_number"`
	SequenceNo      decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	ExpenseDate     time.Time       `gorm:"not null;index" json:"expense_date"`
	Category        ExpenseCategory `gorm:"type:enum('Fuel','Toll','Maintenance','Office','Other');not null;index" json:"category"`
	AccountId       int             `gorm:"not null;index" json:"account_id"`
	TripId          *int            `gorm:"index" json:"trip_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentChannel  string          `gorm:"size:50" json:"payment_channel"`
	ReferenceNumber string          `gorm:"size:255" json:"reference_number"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedBy       int             `gorm:"index" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e Expense) GetId() int {
	return e.ID
}

type NewExpense struct {
	ExpenseDate     time.Time       `json:"expense_date"`
	Category        ExpenseCategory `json:"category"`
	AccountId       int             `json:"account_id"`
	TripId          *int            `json:"trip_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentChannel  string          `json:"payment_channel"`
	ReferenceNumber string          `json:"reference_number"`
	Notes           string          `json:"notes"`
}

func (input *NewExpense) validate(ctx context.Context, businessId string) ([]string, error) {
	var violations []string
	if input.ExpenseDate.IsZero() {
		violations = append(violations, "expense date is required")
	}
	if !input.Category.Valid() {
		violations = append(violations, "category must be Fuel, Toll, Maintenance, Office or Other")
	}
	if !input.Amount.IsPositive() {
		violations = append(violations, "amount must be positive")
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
	if input.TripId != nil {
		if err := utils.ValidateResourceId[Trip](ctx, businessId, *input.TripId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				violations = append(violations, "trip not found")
			} else {
				return nil, err
			}
		}
	}
	return violations, nil
}

func RecordExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
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

	seqNo, err := utils.GetSequence[Expense](ctx, businessId)
	if err != nil {
		return nil, err
	}

	expense := Expense{
		BusinessId:      businessId,
		ExpenseNumber:   fmt.Sprintf("EXP-%d", seqNo),
		SequenceNo:      decimal.NewFromInt(seqNo),
		ExpenseDate:     input.ExpenseDate,
		Category:        input.Category,
		AccountId:       input.AccountId,
		TripId:          input.TripId,
		Amount:          input.Amount,
		PaymentChannel:  input.PaymentChannel,
		ReferenceNumber: input.ReferenceNumber,
		Notes:           input.Notes,
		CreatedBy:       userId,
	}

	var cashRow *CashTransaction
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&expense).Error; err != nil {
			return err
		}

		_, err := createLedgerEntryTx(ctx, tx, businessId, userId, &NewLedgerEntry{
			LedgerType:      LedgerTypeCashBank,
			EntityId:        expense.AccountId,
			EntryDate:       expense.ExpenseDate,
			Description:     fmt.Sprintf("%s expense", expense.Category),
			Debit:           expense.Amount,
			ReferenceNumber: expense.ExpenseNumber,
			TransactionType: "expense",
		})
		if err != nil {
			return err
		}

		cashRow, err = recordCashTransactionTx(ctx, tx, businessId, userId, &NewCashTransaction{
			TransactionDate: expense.ExpenseDate,
			Amount:          expense.Amount,
			Direction:       CashDirectionOut,
			SourceModule:    CashSourceExpense,
			SourceId:        expense.ID,
			PaymentMode:     MapPaymentChannel(expense.PaymentChannel),
			ReferenceNumber: expense.ExpenseNumber,
			Notes:           expense.Notes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	publishCashMovement(ctx, cashRow)
	return &expense, nil
}

func GetExpense(ctx context.Context, id int) (*Expense, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Expense](ctx, businessId, id)
}

func ListExpenses(ctx context.Context) ([]*Expense, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Expense](ctx, businessId)
}
