package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayrollRun is a batch of staff salaries for one period. A run is drafted
// with its items, then disbursed once: disbursal debits the paying money
// account's ledger for the batch total and writes exactly one cash register
// row (Payroll / Out), regardless of how many staff are in the batch.
type PayrollRun struct {
	ID          int              `gorm:"primary_key" json:"id"`
	BusinessId  string           `gorm:"index;not null" json:"business_id"`
	RunNumber   string           `gorm:"size:255;not null" json:"run_number"`
	SequenceNo  decimal.Decimal  `gorm:"type:decimal(15);not null" json:"sequence_no"`
	PeriodLabel string           `gorm:"size:50;not null" json:"period_label"`
	TotalAmount decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Status      PayrollRunStatus `gorm:"type:enum('Draft','Disbursed');default:'Draft';not null" json:"status"`
	AccountId   *int             `gorm:"index" json:"account_id"`
	DisbursedAt *time.Time       `json:"disbursed_at"`
	Notes       string           `gorm:"type:text" json:"notes"`
	CreatedBy   int              `gorm:"index" json:"created_by"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`

	Items []PayrollItem `gorm:"foreignKey:PayrollRunId" json:"items"`
}

func (r PayrollRun) GetId() int {
	return r.ID
}

type PayrollItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	PayrollRunId int             `gorm:"not null;index" json:"payroll_run_id"`
	StaffName    string          `gorm:"size:100;not null" json:"staff_name"`
	Designation  string          `gorm:"size:100" json:"designation"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Notes        string          `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPayrollItem struct {
	StaffName   string          `json:"staff_name"`
	Designation string          `json:"designation"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes"`
}

type NewPayrollRun struct {
	PeriodLabel string           `json:"period_label"`
	Notes       string           `json:"notes"`
	Items       []NewPayrollItem `json:"items"`
}

func (input *NewPayrollRun) validate() []string {
	var violations []string
	if input.PeriodLabel == "" {
		violations = append(violations, "period label is required")
	}
	if len(input.Items) == 0 {
		violations = append(violations, "at least one payroll item is required")
	}
	for i, item := range input.Items {
		if item.StaffName == "" {
			violations = append(violations, fmt.Sprintf("item %d: staff name is required", i+1))
		}
		if !item.Amount.IsPositive() {
			violations = append(violations, fmt.Sprintf("item %d: amount must be positive", i+1))
		}
	}
	return violations
}

// CreatePayrollRun drafts a run with its items. Nothing moves in the books
// until DisbursePayrollRun.
func CreatePayrollRun(ctx context.Context, input *NewPayrollRun) (*PayrollRun, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if violations := input.validate(); len(violations) > 0 {
		return nil, utils.NewValidationError(violations...)
	}

	seqNo, err := utils.GetSequence[PayrollRun](ctx, businessId)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	items := make([]PayrollItem, 0, len(input.Items))
	for _, item := range input.Items {
		total = total.Add(item.Amount)
		items = append(items, PayrollItem{
			BusinessId:  businessId,
			StaffName:   item.StaffName,
			Designation: item.Designation,
			Amount:      item.Amount,
			Notes:       item.Notes,
		})
	}

	run := PayrollRun{
		BusinessId:  businessId,
		RunNumber:   fmt.Sprintf("PAY-%d", seqNo),
		SequenceNo:  decimal.NewFromInt(seqNo),
		PeriodLabel: input.PeriodLabel,
		TotalAmount: total,
		Status:      PayrollRunStatusDraft,
		Notes:       input.Notes,
		CreatedBy:   userId,
		Items:       items,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// DisbursePayrollRun pays out a drafted run from one money account. A redis
// lock keyed by the run id fences concurrent disbursal attempts across
// instances; the Draft status check inside the transaction is the backstop
// when redis is not configured.
func DisbursePayrollRun(ctx context.Context, id int, accountId int) (*PayrollRun, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if err := utils.ValidateActiveResourceId[MoneyAccount](ctx, businessId, accountId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("money account not found or inactive")
		}
		return nil, err
	}

	if locker := config.GetRedisLock(); locker != nil {
		lockKey := fmt.Sprintf("%s-payroll_disburse-%d", businessId, id)
		lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, errors.New("payroll run is being disbursed by another request")
			}
			return nil, err
		}
		defer lock.Release(ctx)
	}

	var run PayrollRun
	var cashRow *CashTransaction
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Preload("Items").
			Where("business_id = ? AND id = ?", businessId, id).
			First(&run).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		if err != nil {
			return err
		}
		if run.Status != PayrollRunStatusDraft {
			return utils.NewValidationError("payroll run is already disbursed")
		}

		_, err = createLedgerEntryTx(ctx, tx, businessId, userId, &NewLedgerEntry{
			LedgerType:      LedgerTypeCashBank,
			EntityId:        accountId,
			EntryDate:       time.Now(),
			Description:     fmt.Sprintf("Payroll %s", run.PeriodLabel),
			Debit:           run.TotalAmount,
			ReferenceNumber: run.RunNumber,
			TransactionType: "payroll",
		})
		if err != nil {
			return err
		}

		cashRow, err = recordCashTransactionTx(ctx, tx, businessId, userId, &NewCashTransaction{
			TransactionDate: time.Now(),
			Amount:          run.TotalAmount,
			Direction:       CashDirectionOut,
			SourceModule:    CashSourcePayroll,
			SourceId:        run.ID,
			PaymentMode:     CashPaymentModeBank,
			ReferenceNumber: run.RunNumber,
			Notes:           run.Notes,
		})
		if err != nil {
			return err
		}

		now := time.Now()
		return tx.Model(&run).Updates(map[string]interface{}{
			"Status":      PayrollRunStatusDisbursed,
			"AccountId":   accountId,
			"DisbursedAt": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	publishCashMovement(ctx, cashRow)
	return &run, nil
}

func GetPayrollRun(ctx context.Context, id int) (*PayrollRun, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var run PayrollRun
	err := db.WithContext(ctx).Preload("Items").
		Where("business_id = ? AND id = ?", businessId, id).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func ListPayrollRuns(ctx context.Context) ([]*PayrollRun, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var runs []*PayrollRun
	err := db.WithContext(ctx).Preload("Items").
		Where("business_id = ?", businessId).
		Order("id DESC").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
