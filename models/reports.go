package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/shopspring/decimal"
)

// Reporting reads only the cash register. Domain tables (trips, payments,
// expenses, payroll) never feed dashboard totals directly; the register is the
// one log everything reconciles against.

// IsOperatingExpense decides whether an outflow counts toward the expense
// total. Payable settlements are excluded: the vendor cost was already booked
// against the trip, counting the settlement again would double it.
func IsOperatingExpense(module CashSourceModule) bool {
	switch module {
	case CashSourceExpense, CashSourcePayroll:
		return true
	}
	return false
}

type ModuleOutflow struct {
	SourceModule CashSourceModule `json:"source_module"`
	Total        decimal.Decimal  `json:"total"`
}

// GetCashOutflowByModule breaks outflows in [from, to] down by the workflow
// that produced them.
func GetCashOutflowByModule(ctx context.Context, from time.Time, to time.Time) ([]*ModuleOutflow, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	start := utils.DateOnly(from)
	end := utils.DateOnly(to).AddDate(0, 0, 1)

	db := config.GetDB()
	var rows []*ModuleOutflow
	err := db.WithContext(ctx).Model(&CashTransaction{}).
		Select("source_module, COALESCE(SUM(amount), 0) AS total").
		Where("business_id = ? AND is_deleted = false AND direction = 'Out'", businessId).
		Where("transaction_date >= ? AND transaction_date < ?", start, end).
		Group("source_module").
		Order("source_module ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetOperatingExpenseTotal sums outflows that represent real operating cost in
// [from, to]; see IsOperatingExpense for what is excluded.
func GetOperatingExpenseTotal(ctx context.Context, from time.Time, to time.Time) (decimal.Decimal, error) {
	rows, err := GetCashOutflowByModule(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		if IsOperatingExpense(row.SourceModule) {
			total = total.Add(row.Total)
		}
	}
	return total, nil
}

type CashSummary struct {
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	TotalIn          decimal.Decimal `json:"total_in"`
	TotalOut         decimal.Decimal `json:"total_out"`
	OperatingExpense decimal.Decimal `json:"operating_expense"`
	ClosingBalance   decimal.Decimal `json:"closing_balance"`
}

// GetCashSummary is the dashboard header: range totals plus the live register
// balance, all derived from the same log.
func GetCashSummary(ctx context.Context, from time.Time, to time.Time) (*CashSummary, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	start := utils.DateOnly(from)
	end := utils.DateOnly(to)

	db := config.GetDB()
	var totals struct {
		TotalIn  decimal.Decimal
		TotalOut decimal.Decimal
	}
	err := db.WithContext(ctx).Model(&CashTransaction{}).
		Select("COALESCE(SUM(CASE WHEN direction = 'In' THEN amount ELSE 0 END), 0) AS total_in, "+
			"COALESCE(SUM(CASE WHEN direction = 'Out' THEN amount ELSE 0 END), 0) AS total_out").
		Where("business_id = ? AND is_deleted = false", businessId).
		Where("transaction_date >= ? AND transaction_date < ?", start, end.AddDate(0, 0, 1)).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	expense, err := GetOperatingExpenseTotal(ctx, from, to)
	if err != nil {
		return nil, err
	}
	balance, err := GetCashBalance(ctx)
	if err != nil {
		return nil, err
	}

	return &CashSummary{
		From:             start,
		To:               end,
		TotalIn:          totals.TotalIn,
		TotalOut:         totals.TotalOut,
		OperatingExpense: expense,
		ClosingBalance:   balance,
	}, nil
}
