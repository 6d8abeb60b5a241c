package models

import "errors"

type LedgerType string

const (
	LedgerTypeClient   LedgerType = "Client"
	LedgerTypeVendor   LedgerType = "Vendor"
	LedgerTypeCashBank LedgerType = "CashBank"
)

func (t LedgerType) Valid() bool {
	switch t {
	case LedgerTypeClient, LedgerTypeVendor, LedgerTypeCashBank:
		return true
	}
	return false
}

type CashDirection string

const (
	CashDirectionIn  CashDirection = "In"
	CashDirectionOut CashDirection = "Out"
)

func (d CashDirection) Valid() bool {
	return d == CashDirectionIn || d == CashDirectionOut
}

// CashSourceModule identifies which domain workflow produced a cash transaction.
// Closed set: aggregation rules key off it (Payable outflows are NOT expenses).
type CashSourceModule string

const (
	CashSourceReceivable CashSourceModule = "Receivable"
	CashSourcePayable    CashSourceModule = "Payable"
	CashSourceExpense    CashSourceModule = "Expense"
	CashSourcePayroll    CashSourceModule = "Payroll"
	CashSourceAdjustment CashSourceModule = "Adjustment"
)

func (m CashSourceModule) Valid() bool {
	switch m {
	case CashSourceReceivable, CashSourcePayable, CashSourceExpense, CashSourcePayroll, CashSourceAdjustment:
		return true
	}
	return false
}

type CashPaymentMode string

const (
	CashPaymentModeCash   CashPaymentMode = "Cash"
	CashPaymentModeBank   CashPaymentMode = "Bank"
	CashPaymentModeCheque CashPaymentMode = "Cheque"
	CashPaymentModeOnline CashPaymentMode = "Online"
	CashPaymentModeMobile CashPaymentMode = "Mobile"
)

func (m CashPaymentMode) Valid() bool {
	switch m {
	case CashPaymentModeCash, CashPaymentModeBank, CashPaymentModeCheque, CashPaymentModeOnline, CashPaymentModeMobile:
		return true
	}
	return false
}

type MoneyAccountType string

const (
	MoneyAccountTypeCash MoneyAccountType = "cash"
	MoneyAccountTypeBank MoneyAccountType = "bank"
)

func (t MoneyAccountType) Valid() bool {
	return t == MoneyAccountTypeCash || t == MoneyAccountTypeBank
}

type ExpenseCategory string

const (
	ExpenseCategoryFuel        ExpenseCategory = "Fuel"
	ExpenseCategoryToll        ExpenseCategory = "Toll"
	ExpenseCategoryMaintenance ExpenseCategory = "Maintenance"
	ExpenseCategoryOffice      ExpenseCategory = "Office"
	ExpenseCategoryOther       ExpenseCategory = "Other"
)

func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseCategoryFuel, ExpenseCategoryToll, ExpenseCategoryMaintenance, ExpenseCategoryOffice, ExpenseCategoryOther:
		return true
	}
	return false
}

type TripStatus string

const (
	TripStatusBooked    TripStatus = "Booked"
	TripStatusCompleted TripStatus = "Completed"
	TripStatusCancelled TripStatus = "Cancelled"
)

type PayrollRunStatus string

const (
	PayrollRunStatusDraft     PayrollRunStatus = "Draft"
	PayrollRunStatusDisbursed PayrollRunStatus = "Disbursed"
)

var errInvalidEnum = errors.New("invalid enum value")
