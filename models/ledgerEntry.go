package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerEntry is one immutable debit-or-credit movement against a single
// entity (client, vendor or money account). Corrections are new offsetting
// entries, never edits.
//
// RunningBalance is folded at insert time:
//
//	running_balance = previous + credit - debit
//
// ordered by (entry_date, id). When two entries share a date, insertion order
// (monotonic id) decides the fold order; history views use the same tiebreak.
type LedgerEntry struct {
	ID              int             `gorm:"primary_key;index:idx_le_biz_entity,priority:4" json:"id"`
	BusinessId      string          `gorm:"index;not null;index:idx_le_biz_entity,priority:1" json:"business_id"`
	LedgerType      LedgerType      `gorm:"type:enum('Client','Vendor','CashBank');not null;index:idx_le_biz_entity,priority:2" json:"ledger_type"`
	EntityId        int             `gorm:"not null;index:idx_le_biz_entity,priority:3" json:"entity_id"`
	EntryDate       time.Time       `gorm:"index;not null" json:"entry_date"`
	Description     string          `gorm:"size:255;not null" json:"description"`
	Debit           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
	RunningBalance  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"running_balance"`
	ReferenceNumber string          `gorm:"size:255" json:"reference_number"`
	TransactionType string          `gorm:"size:100" json:"transaction_type"`
	CreatedBy       int             `gorm:"index" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Ledger immutability guardrails: ledger_entries are append-only.
func (e *LedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: ledger_entries cannot be updated")
}

func (e *LedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: ledger_entries cannot be deleted")
}

type NewLedgerEntry struct {
	LedgerType      LedgerType      `json:"ledger_type"`
	EntityId        int             `json:"entity_id"`
	EntryDate       time.Time       `json:"entry_date"`
	Description     string          `json:"description"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	ReferenceNumber string          `json:"reference_number"`
	TransactionType string          `json:"transaction_type"`
}

// amountViolations covers the pure checks (no DB): signs, exclusivity and
// required fields. Kept separate so the rules stay unit-testable.
func (input *NewLedgerEntry) amountViolations() []string {
	var violations []string
	if !input.LedgerType.Valid() {
		violations = append(violations, "ledger type must be Client, Vendor or CashBank")
	}
	if input.EntityId <= 0 {
		violations = append(violations, "entity id is required")
	}
	if input.EntryDate.IsZero() {
		violations = append(violations, "entry date is required")
	}
	if input.Description == "" {
		violations = append(violations, "description is required")
	}
	if input.Debit.IsNegative() {
		violations = append(violations, "debit amount must not be negative")
	}
	if input.Credit.IsNegative() {
		violations = append(violations, "credit amount must not be negative")
	}
	if !input.Debit.IsPositive() && !input.Credit.IsPositive() {
		violations = append(violations, "either debit or credit must have value")
	}
	if input.Debit.IsPositive() && input.Credit.IsPositive() {
		violations = append(violations, "debit and credit cannot both have value; post two entries instead")
	}
	return violations
}

// validate returns every violated rule at once. The second return is an
// infrastructure error (DB failure during the existence lookup), not a
// validation outcome.
func (input *NewLedgerEntry) validate(ctx context.Context, businessId string) ([]string, error) {
	violations := input.amountViolations()

	// entity must exist AND be active for its ledger type; a missing or
	// deactivated entity is a hard validation failure
	if input.LedgerType.Valid() && input.EntityId > 0 {
		var err error
		var label string
		switch input.LedgerType {
		case LedgerTypeClient:
			label = "client"
			err = utils.ValidateActiveResourceId[Client](ctx, businessId, input.EntityId)
		case LedgerTypeVendor:
			label = "vendor"
			err = utils.ValidateActiveResourceId[Vendor](ctx, businessId, input.EntityId)
		case LedgerTypeCashBank:
			label = "money account"
			err = utils.ValidateActiveResourceId[MoneyAccount](ctx, businessId, input.EntityId)
		}
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				violations = append(violations, label+" not found or inactive")
			} else {
				return nil, err
			}
		}
	}
	return violations, nil
}

// CreateLedgerEntry appends one movement and moves the owning entity's cached
// balance in the same transaction. The entity row is locked FOR UPDATE before
// the prior balance is read, so concurrent posts against the same entity
// serialize instead of losing updates; different entities do not contend.
func CreateLedgerEntry(ctx context.Context, input *NewLedgerEntry) (*LedgerEntry, error) {
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

	db := config.GetDB()
	var entry *LedgerEntry
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = createLedgerEntryTx(ctx, tx, businessId, userId, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// createLedgerEntryTx posts one entry inside a caller-owned transaction. The
// domain workflows use it to move several ledgers and the cash register as a
// single unit. Input must already be validated.
func createLedgerEntryTx(ctx context.Context, tx *gorm.DB, businessId string, userId int, input *NewLedgerEntry) (*LedgerEntry, error) {
	if err := lockLedgerEntity(ctx, tx, businessId, input.LedgerType, input.EntityId); err != nil {
		return nil, err
	}

	currentBalance, err := runningBalanceTx(ctx, tx, businessId, input.LedgerType, input.EntityId)
	if err != nil {
		return nil, err
	}
	newBalance := currentBalance.Add(input.Credit).Sub(input.Debit)

	entry := LedgerEntry{
		BusinessId:      businessId,
		LedgerType:      input.LedgerType,
		EntityId:        input.EntityId,
		EntryDate:       input.EntryDate,
		Description:     input.Description,
		Debit:           input.Debit,
		Credit:          input.Credit,
		RunningBalance:  newBalance,
		ReferenceNumber: input.ReferenceNumber,
		TransactionType: input.TransactionType,
		CreatedBy:       userId,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	// cached balance moves with the entry or not at all
	if err := applyCachedBalance(ctx, tx, businessId, input.LedgerType, input.EntityId, newBalance); err != nil {
		return nil, err
	}
	return &entry, nil
}

// lockLedgerEntity takes a row lock on the owning entity so the
// read-balance-then-write sequence cannot interleave for that entity.
// The active flag is re-checked on the locked row: validation ran before
// the transaction opened, and the entity may have been deactivated since.
func lockLedgerEntity(ctx context.Context, tx *gorm.DB, businessId string, ledgerType LedgerType, entityId int) error {
	locking := clause.Locking{Strength: "UPDATE"}
	var isActive *bool
	var err error
	switch ledgerType {
	case LedgerTypeClient:
		var c Client
		err = tx.WithContext(ctx).Clauses(locking).Where("business_id = ? AND id = ?", businessId, entityId).First(&c).Error
		isActive = c.IsActive
	case LedgerTypeVendor:
		var v Vendor
		err = tx.WithContext(ctx).Clauses(locking).Where("business_id = ? AND id = ?", businessId, entityId).First(&v).Error
		isActive = v.IsActive
	case LedgerTypeCashBank:
		var a MoneyAccount
		err = tx.WithContext(ctx).Clauses(locking).Where("business_id = ? AND id = ?", businessId, entityId).First(&a).Error
		isActive = a.IsActive
	default:
		return errInvalidEnum
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	if err != nil {
		return err
	}
	if isActive == nil || !*isActive {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// applyCachedBalance is the single choke point for entity balance writes.
// gorm.Model(&Type{}).Update is used instead of loading the struct so the
// LedgerEntry hooks above stay the only immutability guard in play.
func applyCachedBalance(ctx context.Context, tx *gorm.DB, businessId string, ledgerType LedgerType, entityId int, balance decimal.Decimal) error {
	switch ledgerType {
	case LedgerTypeClient:
		return tx.WithContext(ctx).Model(&Client{}).
			Where("business_id = ? AND id = ?", businessId, entityId).
			Update("balance", balance).Error
	case LedgerTypeVendor:
		return tx.WithContext(ctx).Model(&Vendor{}).
			Where("business_id = ? AND id = ?", businessId, entityId).
			Update("balance", balance).Error
	case LedgerTypeCashBank:
		return tx.WithContext(ctx).Model(&MoneyAccount{}).
			Where("business_id = ? AND id = ?", businessId, entityId).
			Update("current_balance", balance).Error
	}
	return errInvalidEnum
}

func runningBalanceTx(ctx context.Context, tx *gorm.DB, businessId string, ledgerType LedgerType, entityId int) (decimal.Decimal, error) {
	var last LedgerEntry
	err := tx.WithContext(ctx).
		Where("business_id = ? AND ledger_type = ? AND entity_id = ?", businessId, ledgerType, entityId).
		Order("entry_date DESC, id DESC").
		First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// no history yet is a valid state, not an error
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return last.RunningBalance, nil
}

// GetRunningBalance returns the balance after the most recent entry for
// (ledgerType, entityId); zero when the entity has no history.
func GetRunningBalance(ctx context.Context, ledgerType LedgerType, entityId int) (decimal.Decimal, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return decimal.Zero, errors.New("business id is required")
	}
	return runningBalanceTx(ctx, config.GetDB(), businessId, ledgerType, entityId)
}

// GetLedgerHistory lists entries newest first, (entry_date desc, id desc),
// optionally bounded by an inclusive calendar-date range. Bounds are
// normalized to whole days so entries timestamped within the final date
// (payroll posts with a wall-clock EntryDate) are not cut off.
func GetLedgerHistory(ctx context.Context, ledgerType LedgerType, entityId int, fromDate *time.Time, toDate *time.Time, limit int) ([]*LedgerEntry, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Where("business_id = ? AND ledger_type = ? AND entity_id = ?", businessId, ledgerType, entityId)
	if fromDate != nil {
		dbCtx = dbCtx.Where("entry_date >= ?", utils.DateOnly(*fromDate))
	}
	if toDate != nil {
		dbCtx = dbCtx.Where("entry_date < ?", utils.DateOnly(*toDate).AddDate(0, 0, 1))
	}

	var entries []*LedgerEntry
	err := dbCtx.Order("entry_date DESC, id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
