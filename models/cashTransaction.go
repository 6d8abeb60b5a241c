package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/events"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CashTransaction is one entry in the central cash register: the single record
// of "cash moved, this much, this way, because of that workflow". Every
// money-moving workflow appends exactly one row here; dashboard aggregates are
// computed from this log alone, never from the domain tables.
//
// Rows are never edited or physically removed after creation. The only
// permitted mutation is the soft-delete triple, set together in one update.
type CashTransaction struct {
	ID                int              `gorm:"primary_key" json:"id"`
	BusinessId        string           `gorm:"index;not null;index:idx_ct_biz_date,priority:1" json:"business_id"`
	TransactionNumber string           `gorm:"size:255;not null" json:"transaction_number"`
	SequenceNo        decimal.Decimal  `gorm:"type:decimal(15);not null" json:"sequence_no"`
	TransactionDate   time.Time        `gorm:"not null;index;index:idx_ct_biz_date,priority:2" json:"transaction_date"`
	Amount            decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Direction         CashDirection    `gorm:"type:enum('In','Out');not null" json:"direction"`
	SourceModule      CashSourceModule `gorm:"type:enum('Receivable','Payable','Expense','Payroll','Adjustment');not null;index" json:"source_module"`
	SourceId          int              `gorm:"index;default:0" json:"source_id"`
	PaymentMode       CashPaymentMode  `gorm:"type:enum('Cash','Bank','Cheque','Online','Mobile');not null" json:"payment_mode"`
	ReferenceNumber   string           `gorm:"size:255" json:"reference_number"`
	Notes             string           `gorm:"type:text" json:"notes"`
	CreatedBy         int              `gorm:"index" json:"created_by"`
	IsDeleted         *bool            `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedBy         *int             `json:"deleted_by"`
	DeletedAt         *time.Time       `json:"deleted_at"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t CashTransaction) GetId() int {
	return t.ID
}

// Cash register guardrails:
// - rows are append-only; amount/direction/date are frozen at creation
// - the soft-delete triple is the only mutable surface
func (t *CashTransaction) BeforeUpdate(tx *gorm.DB) error {
	allowed := map[string]bool{
		"IsDeleted": true,
		"DeletedBy": true,
		"DeletedAt": true,
		"UpdatedAt": true,
	}
	if tx == nil || tx.Statement == nil || tx.Statement.Schema == nil {
		return nil
	}
	for _, f := range tx.Statement.Schema.Fields {
		if tx.Statement.Changed(f.Name) && !allowed[f.Name] {
			return errors.New("immutable cash register: only soft-delete fields may be updated")
		}
	}
	return nil
}

func (t *CashTransaction) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable cash register: rows are soft-deleted, never removed")
}

type NewCashTransaction struct {
	TransactionDate time.Time        `json:"transaction_date"`
	Amount          decimal.Decimal  `json:"amount"`
	Direction       CashDirection    `json:"direction"`
	SourceModule    CashSourceModule `json:"source_module"`
	SourceId        int              `json:"source_id"`
	PaymentMode     CashPaymentMode  `json:"payment_mode"`
	ReferenceNumber string           `json:"reference_number"`
	Notes           string           `json:"notes"`
}

func (input *NewCashTransaction) violations() []string {
	var violations []string
	if input.TransactionDate.IsZero() {
		violations = append(violations, "transaction date is required")
	}
	if !input.Amount.IsPositive() {
		violations = append(violations, "amount must be positive; direction encodes the sign")
	}
	if !input.Direction.Valid() {
		violations = append(violations, "direction must be In or Out")
	}
	if !input.SourceModule.Valid() {
		violations = append(violations, "source module must be Receivable, Payable, Expense, Payroll or Adjustment")
	}
	if !input.PaymentMode.Valid() {
		violations = append(violations, "payment mode must be Cash, Bank, Cheque, Online or Mobile")
	}
	return violations
}

// paymentChannelModes maps raw channel strings coming from payment forms and
// import files onto the closed payment-mode set.
var paymentChannelModes = map[string]CashPaymentMode{
	"cash":          CashPaymentModeCash,
	"bank":          CashPaymentModeBank,
	"bank_transfer": CashPaymentModeBank,
	"neft":          CashPaymentModeBank,
	"rtgs":          CashPaymentModeBank,
	"cheque":        CashPaymentModeCheque,
	"check":         CashPaymentModeCheque,
	"online":        CashPaymentModeOnline,
	"credit_card":   CashPaymentModeOnline,
	"upi":           CashPaymentModeOnline,
	"gateway":       CashPaymentModeOnline,
	"mobile":        CashPaymentModeMobile,
	"mobile_money":  CashPaymentModeMobile,
	"wallet":        CashPaymentModeMobile,
}

// MapPaymentChannel never fails: an unknown channel falls back to Bank so a
// classification gap cannot block a real cash movement.
func MapPaymentChannel(channel string) CashPaymentMode {
	if mode, ok := paymentChannelModes[channel]; ok {
		return mode
	}
	return CashPaymentModeBank
}

// RecordCashTransaction appends one row to the register. The calling workflow
// owns the exactly-once contract: one real-world cash event, one call here.
func RecordCashTransaction(ctx context.Context, input *NewCashTransaction) (*CashTransaction, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	if violations := input.violations(); len(violations) > 0 {
		return nil, utils.NewValidationError(violations...)
	}

	seqNo, err := utils.GetSequence[CashTransaction](ctx, businessId)
	if err != nil {
		return nil, err
	}

	transaction := CashTransaction{
		BusinessId:        businessId,
		TransactionNumber: fmt.Sprintf("CSH-%d", seqNo),
		SequenceNo:        decimal.NewFromInt(seqNo),
		TransactionDate:   input.TransactionDate,
		Amount:            input.Amount,
		Direction:         input.Direction,
		SourceModule:      input.SourceModule,
		SourceId:          input.SourceId,
		PaymentMode:       input.PaymentMode,
		ReferenceNumber:   input.ReferenceNumber,
		Notes:             input.Notes,
		CreatedBy:         userId,
		IsDeleted:         utils.NewFalse(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&transaction).Error; err != nil {
		return nil, err
	}

	publishCashMovement(ctx, &transaction)
	return &transaction, nil
}

// recordCashTransactionTx is the in-transaction variant used by workflows that
// post ledger entries and the cash row atomically.
func recordCashTransactionTx(ctx context.Context, tx *gorm.DB, businessId string, userId int, input *NewCashTransaction) (*CashTransaction, error) {
	if violations := input.violations(); len(violations) > 0 {
		return nil, utils.NewValidationError(violations...)
	}
	seqNo, err := utils.GetSequence[CashTransaction](ctx, businessId)
	if err != nil {
		return nil, err
	}
	transaction := CashTransaction{
		BusinessId:        businessId,
		TransactionNumber: fmt.Sprintf("CSH-%d", seqNo),
		SequenceNo:        decimal.NewFromInt(seqNo),
		TransactionDate:   input.TransactionDate,
		Amount:            input.Amount,
		Direction:         input.Direction,
		SourceModule:      input.SourceModule,
		SourceId:          input.SourceId,
		PaymentMode:       input.PaymentMode,
		ReferenceNumber:   input.ReferenceNumber,
		Notes:             input.Notes,
		CreatedBy:         userId,
		IsDeleted:         utils.NewFalse(),
	}
	if err := tx.WithContext(ctx).Create(&transaction).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// publishCashMovement is best-effort; a broker outage never fails the write.
func publishCashMovement(ctx context.Context, t *CashTransaction) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	err := events.PublishCashMovement(ctx, events.CashMovement{
		TransactionId:     t.ID,
		BusinessId:        t.BusinessId,
		TransactionNumber: t.TransactionNumber,
		TransactionDate:   t.TransactionDate,
		Amount:            t.Amount,
		Direction:         string(t.Direction),
		SourceModule:      string(t.SourceModule),
		SourceId:          t.SourceId,
		PaymentMode:       string(t.PaymentMode),
		CreatedBy:         t.CreatedBy,
		CorrelationId:     correlationId,
	})
	if err != nil {
		config.LogError(config.GetLogger(), "models", "publishCashMovement", "kafka publish", t.TransactionNumber, err)
	}
}

// GetCashBalance recomputes the register balance from the full log on every
// call: sum(In) - sum(Out) over non-deleted rows. There is no cached total to
// drift.
func GetCashBalance(ctx context.Context) (decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, errors.New("business id is required")
	}
	return cashBalanceWhere(ctx, businessId, "1 = 1")
}

// GetCashBalanceAsOf is the same fold restricted to dates before the cutoff
// (exclusive); it seeds the opening balance of flow series.
func GetCashBalanceAsOf(ctx context.Context, before time.Time) (decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, errors.New("business id is required")
	}
	return cashBalanceWhere(ctx, businessId, "transaction_date < ?", before)
}

func cashBalanceWhere(ctx context.Context, businessId string, condition string, args ...interface{}) (decimal.Decimal, error) {
	db := config.GetDB()
	var result struct {
		Balance decimal.Decimal
	}
	err := db.WithContext(ctx).Model(&CashTransaction{}).
		Select("COALESCE(SUM(CASE WHEN direction = 'In' THEN amount ELSE -amount END), 0) AS balance").
		Where("business_id = ? AND is_deleted = false", businessId).
		Where(condition, args...).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Balance, nil
}

type DailyCashFlow struct {
	Date    time.Time       `json:"date"`
	CashIn  decimal.Decimal `json:"cash_in"`
	CashOut decimal.Decimal `json:"cash_out"`
	Net     decimal.Decimal `json:"net"`
}

// GetDailyCashFlow sums the register for one calendar date.
func GetDailyCashFlow(ctx context.Context, date time.Time) (*DailyCashFlow, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	day := utils.DateOnly(date)

	db := config.GetDB()
	var result struct {
		CashIn  decimal.Decimal
		CashOut decimal.Decimal
	}
	err := db.WithContext(ctx).Model(&CashTransaction{}).
		Select("COALESCE(SUM(CASE WHEN direction = 'In' THEN amount ELSE 0 END), 0) AS cash_in, "+
			"COALESCE(SUM(CASE WHEN direction = 'Out' THEN amount ELSE 0 END), 0) AS cash_out").
		Where("business_id = ? AND is_deleted = false", businessId).
		Where("transaction_date >= ? AND transaction_date < ?", day, day.AddDate(0, 0, 1)).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}
	return &DailyCashFlow{
		Date:    day,
		CashIn:  result.CashIn,
		CashOut: result.CashOut,
		Net:     result.CashIn.Sub(result.CashOut),
	}, nil
}

type DailyCashFlowRow struct {
	Date           time.Time       `json:"date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CashIn         decimal.Decimal `json:"cash_in"`
	CashOut        decimal.Decimal `json:"cash_out"`
	Net            decimal.Decimal `json:"net"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// GetDailyCashFlowSeries folds the register over [from, to] in ascending date
// order. Opening balance of the range is the balance over everything before
// `from`; each day's closing carries into the next emitted day. Dates without
// transactions are skipped; the fold stays correct because those days add no
// net flow.
func GetDailyCashFlowSeries(ctx context.Context, from time.Time, to time.Time) ([]*DailyCashFlowRow, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	start := utils.DateOnly(from)
	end := utils.DateOnly(to)

	opening, err := cashBalanceWhere(ctx, businessId, "transaction_date < ?", start)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var grouped []DailyCashFlow
	err = db.WithContext(ctx).Model(&CashTransaction{}).
		Select("DATE(transaction_date) AS date, "+
			"COALESCE(SUM(CASE WHEN direction = 'In' THEN amount ELSE 0 END), 0) AS cash_in, "+
			"COALESCE(SUM(CASE WHEN direction = 'Out' THEN amount ELSE 0 END), 0) AS cash_out").
		Where("business_id = ? AND is_deleted = false", businessId).
		Where("transaction_date >= ? AND transaction_date < ?", start, end.AddDate(0, 0, 1)).
		Group("DATE(transaction_date)").
		Order("DATE(transaction_date) ASC").
		Scan(&grouped).Error
	if err != nil {
		return nil, err
	}

	return buildDailyCashFlowSeries(opening, grouped), nil
}

// buildDailyCashFlowSeries is the pure fold:
// closing[i] = opening[i] + net[i]; opening[i+1] = closing[i].
func buildDailyCashFlowSeries(opening decimal.Decimal, days []DailyCashFlow) []*DailyCashFlowRow {
	rows := make([]*DailyCashFlowRow, 0, len(days))
	running := opening
	for _, d := range days {
		net := d.CashIn.Sub(d.CashOut)
		row := &DailyCashFlowRow{
			Date:           utils.DateOnly(d.Date),
			OpeningBalance: running,
			CashIn:         d.CashIn,
			CashOut:        d.CashOut,
			Net:            net,
			ClosingBalance: running.Add(net),
		}
		running = row.ClosingBalance
		rows = append(rows, row)
	}
	return rows
}

// SoftDeleteCashTransaction voids a register row without touching its amount,
// direction or date. Returns false (no error) when there is nothing to
// delete; callers treat that as a benign outcome.
func SoftDeleteCashTransaction(ctx context.Context, id int) (bool, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	db := config.GetDB()
	deleted := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var transaction CashTransaction
		err := tx.Where("business_id = ? AND id = ? AND is_deleted = false", businessId, id).
			First(&transaction).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now()
		// the triple moves together or not at all
		err = tx.Model(&transaction).Updates(map[string]interface{}{
			"IsDeleted": true,
			"DeletedBy": userId,
			"DeletedAt": now,
		}).Error
		if err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
