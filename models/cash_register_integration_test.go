package models_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/models"
	"github.com/shopspring/decimal"
)

func TestCashBalanceAndSoftDeleteRestore(t *testing.T) {
	ctx := setupIntegration(t)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	in, err := models.RecordCashTransaction(ctx, &models.NewCashTransaction{
		TransactionDate: day,
		Amount:          decimal.NewFromInt(5000),
		Direction:       models.CashDirectionIn,
		SourceModule:    models.CashSourceAdjustment,
		PaymentMode:     models.CashPaymentModeCash,
	})
	if err != nil {
		t.Fatalf("RecordCashTransaction(in): %v", err)
	}
	if in.TransactionNumber == "" || in.SequenceNo.IsZero() {
		t.Fatalf("expected assigned transaction number and sequence; got %+v", in)
	}

	out, err := models.RecordCashTransaction(ctx, &models.NewCashTransaction{
		TransactionDate: day,
		Amount:          decimal.NewFromInt(1200),
		Direction:       models.CashDirectionOut,
		SourceModule:    models.CashSourceAdjustment,
		PaymentMode:     models.CashPaymentModeCash,
	})
	if err != nil {
		t.Fatalf("RecordCashTransaction(out): %v", err)
	}

	balance, err := models.GetCashBalance(ctx)
	if err != nil {
		t.Fatalf("GetCashBalance: %v", err)
	}
	if balance.Cmp(decimal.NewFromInt(3800)) != 0 {
		t.Fatalf("expected balance 3800; got %s", balance)
	}

	// soft-deleting the outflow restores its amount to the balance
	deleted, err := models.SoftDeleteCashTransaction(ctx, out.ID)
	if err != nil {
		t.Fatalf("SoftDeleteCashTransaction: %v", err)
	}
	if !deleted {
		t.Fatal("expected deletion to report true")
	}
	balance, err = models.GetCashBalance(ctx)
	if err != nil {
		t.Fatalf("GetCashBalance after delete: %v", err)
	}
	if balance.Cmp(decimal.NewFromInt(5000)) != 0 {
		t.Fatalf("expected balance 5000 after soft delete; got %s", balance)
	}

	// deleting again (or a missing id) is a no-op, not an error
	deleted, err = models.SoftDeleteCashTransaction(ctx, out.ID)
	if err != nil || deleted {
		t.Fatalf("expected (false, nil) on second delete; got (%v, %v)", deleted, err)
	}
	deleted, err = models.SoftDeleteCashTransaction(ctx, 99999)
	if err != nil || deleted {
		t.Fatalf("expected (false, nil) on missing id; got (%v, %v)", deleted, err)
	}

	// the soft-deleted row is voided, not erased
	db := config.GetDB()
	var row models.CashTransaction
	if err := db.WithContext(ctx).Unscoped().First(&row, out.ID).Error; err != nil {
		t.Fatalf("expected soft-deleted row to remain: %v", err)
	}
	if row.IsDeleted == nil || !*row.IsDeleted || row.DeletedAt == nil || row.DeletedBy == nil {
		t.Fatalf("expected full soft-delete triple set; got %+v", row)
	}
}

func TestCashTransactionAmountStaysImmutable(t *testing.T) {
	ctx := setupIntegration(t)

	row, err := models.RecordCashTransaction(ctx, &models.NewCashTransaction{
		TransactionDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:          decimal.NewFromInt(700),
		Direction:       models.CashDirectionIn,
		SourceModule:    models.CashSourceAdjustment,
		PaymentMode:     models.CashPaymentModeCash,
	})
	if err != nil {
		t.Fatalf("RecordCashTransaction: %v", err)
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(row).Update("Amount", decimal.NewFromInt(1)).Error; err == nil {
		t.Fatal("expected amount update to be rejected")
	}
	if err := db.WithContext(ctx).Delete(row).Error; err == nil {
		t.Fatal("expected hard delete to be rejected")
	}
}

func TestDailyCashFlowSeriesClosure(t *testing.T) {
	ctx := setupIntegration(t)

	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		date      time.Time
		amount    int64
		direction models.CashDirection
	}{
		{day1, 1000, models.CashDirectionIn},
		{day3, 400, models.CashDirectionOut},
	} {
		_, err := models.RecordCashTransaction(ctx, &models.NewCashTransaction{
			TransactionDate: tc.date,
			Amount:          decimal.NewFromInt(tc.amount),
			Direction:       tc.direction,
			SourceModule:    models.CashSourceAdjustment,
			PaymentMode:     models.CashPaymentModeCash,
		})
		if err != nil {
			t.Fatalf("RecordCashTransaction: %v", err)
		}
	}

	series, err := models.GetDailyCashFlowSeries(ctx,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetDailyCashFlowSeries: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 rows (empty days skipped); got %d", len(series))
	}
	if series[0].ClosingBalance.Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("day 1: expected closing 1000; got %s", series[0].ClosingBalance)
	}
	if series[1].OpeningBalance.Cmp(series[0].ClosingBalance) != 0 {
		t.Fatalf("series not closed: day 3 opening %s != day 1 closing %s",
			series[1].OpeningBalance, series[0].ClosingBalance)
	}
	if series[1].ClosingBalance.Cmp(decimal.NewFromInt(600)) != 0 {
		t.Fatalf("day 3: expected closing 600; got %s", series[1].ClosingBalance)
	}

	// last closing equals the live register balance
	balance, err := models.GetCashBalance(ctx)
	if err != nil {
		t.Fatalf("GetCashBalance: %v", err)
	}
	if balance.Cmp(series[1].ClosingBalance) != 0 {
		t.Fatalf("register balance %s != final closing %s", balance, series[1].ClosingBalance)
	}

	flow, err := models.GetDailyCashFlow(ctx, day1)
	if err != nil {
		t.Fatalf("GetDailyCashFlow: %v", err)
	}
	if flow.CashIn.Cmp(decimal.NewFromInt(1000)) != 0 || !flow.CashOut.IsZero() {
		t.Fatalf("day 1 flow mismatch: %+v", flow)
	}
}

func TestTripBookingRaisesReceivableAndPayableWithoutCash(t *testing.T) {
	ctx := setupIntegration(t)
	client := mustCreateClient(t, ctx, "Shwe Taung Cement")
	vendor := mustCreateVendor(t, ctx, "Mandalay Fleet Services")

	vendorId := vendor.ID
	trip, err := models.CreateTrip(ctx, &models.NewTrip{
		TripDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ClientId:      client.ID,
		VendorId:      &vendorId,
		Origin:        "Yangon",
		Destination:   "Mandalay",
		FreightAmount: decimal.NewFromInt(40000),
		VendorAmount:  decimal.NewFromInt(30000),
	})
	if err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	if trip.TripNumber == "" {
		t.Fatal("expected assigned trip number")
	}

	clientBalance, err := models.GetRunningBalance(ctx, models.LedgerTypeClient, client.ID)
	if err != nil {
		t.Fatalf("GetRunningBalance(client): %v", err)
	}
	if clientBalance.Cmp(decimal.NewFromInt(40000)) != 0 {
		t.Fatalf("expected client receivable 40000; got %s", clientBalance)
	}
	vendorBalance, err := models.GetRunningBalance(ctx, models.LedgerTypeVendor, vendor.ID)
	if err != nil {
		t.Fatalf("GetRunningBalance(vendor): %v", err)
	}
	if vendorBalance.Cmp(decimal.NewFromInt(30000)) != 0 {
		t.Fatalf("expected vendor payable 30000; got %s", vendorBalance)
	}

	// booking never moves cash
	cash, err := models.GetCashBalance(ctx)
	if err != nil {
		t.Fatalf("GetCashBalance: %v", err)
	}
	if !cash.IsZero() {
		t.Fatalf("expected no cash movement on booking; got %s", cash)
	}
}

func TestPaymentWorkflowsWriteExactlyOneCashRowEach(t *testing.T) {
	ctx := setupIntegration(t)
	client := mustCreateClient(t, ctx, "Shwe Taung Cement")
	vendor := mustCreateVendor(t, ctx, "Mandalay Fleet Services")
	account := mustCreateCashAccount(t, ctx, "Office Cash Box")

	vendorId := vendor.ID
	_, err := models.CreateTrip(ctx, &models.NewTrip{
		TripDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ClientId:      client.ID,
		VendorId:      &vendorId,
		Origin:        "Yangon",
		Destination:   "Mandalay",
		FreightAmount: decimal.NewFromInt(40000),
		VendorAmount:  decimal.NewFromInt(30000),
	})
	if err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}

	_, err = models.ReceiveClientPayment(ctx, &models.NewClientPayment{
		PaymentDate:    time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		ClientId:       client.ID,
		AccountId:      account.ID,
		Amount:         decimal.NewFromInt(40000),
		PaymentChannel: "cash",
	})
	if err != nil {
		t.Fatalf("ReceiveClientPayment: %v", err)
	}

	_, err = models.PayVendor(ctx, &models.NewVendorPayment{
		PaymentDate:    time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
		VendorId:       vendor.ID,
		AccountId:      account.ID,
		Amount:         decimal.NewFromInt(30000),
		PaymentChannel: "cash",
	})
	if err != nil {
		t.Fatalf("PayVendor: %v", err)
	}

	_, err = models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:    time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
		Category:       models.ExpenseCategoryFuel,
		AccountId:      account.ID,
		Amount:         decimal.NewFromInt(5000),
		PaymentChannel: "cash",
	})
	if err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}

	// ledgers settled
	clientBalance, _ := models.GetRunningBalance(ctx, models.LedgerTypeClient, client.ID)
	if !clientBalance.IsZero() {
		t.Fatalf("expected client settled; got %s", clientBalance)
	}
	vendorBalance, _ := models.GetRunningBalance(ctx, models.LedgerTypeVendor, vendor.ID)
	if !vendorBalance.IsZero() {
		t.Fatalf("expected vendor settled; got %s", vendorBalance)
	}

	// money account ledger: +40000 -30000 -5000 = 5000, cached balance matches
	accountBalance, _ := models.GetRunningBalance(ctx, models.LedgerTypeCashBank, account.ID)
	if accountBalance.Cmp(decimal.NewFromInt(5000)) != 0 {
		t.Fatalf("expected account balance 5000; got %s", accountBalance)
	}
	freshAccount, err := models.GetMoneyAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetMoneyAccount: %v", err)
	}
	if freshAccount.CurrentBalance.Cmp(decimal.NewFromInt(5000)) != 0 {
		t.Fatalf("expected cached account balance 5000; got %s", freshAccount.CurrentBalance)
	}

	// register agrees with the ledgers
	cash, err := models.GetCashBalance(ctx)
	if err != nil {
		t.Fatalf("GetCashBalance: %v", err)
	}
	if cash.Cmp(decimal.NewFromInt(5000)) != 0 {
		t.Fatalf("expected register balance 5000; got %s", cash)
	}

	// exactly one register row per workflow
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&models.CashTransaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count cash transactions: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected exactly 3 cash rows; got %d", count)
	}
}

func TestOperatingExpenseExcludesVendorSettlements(t *testing.T) {
	ctx := setupIntegration(t)
	vendor := mustCreateVendor(t, ctx, "Bago Truck Owners Co-op")
	account := mustCreateCashAccount(t, ctx, "Office Cash Box")

	// give the vendor a payable to settle
	_, err := models.CreateLedgerEntry(ctx, &models.NewLedgerEntry{
		LedgerType:  models.LedgerTypeVendor,
		EntityId:    vendor.ID,
		EntryDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "Subcontract Yangon -> Bago",
		Credit:      decimal.NewFromInt(20000),
	})
	if err != nil {
		t.Fatalf("CreateLedgerEntry: %v", err)
	}

	_, err = models.PayVendor(ctx, &models.NewVendorPayment{
		PaymentDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		VendorId:       vendor.ID,
		AccountId:      account.ID,
		Amount:         decimal.NewFromInt(20000),
		PaymentChannel: "bank_transfer",
	})
	if err != nil {
		t.Fatalf("PayVendor: %v", err)
	}
	_, err = models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Category:       models.ExpenseCategoryToll,
		AccountId:      account.ID,
		Amount:         decimal.NewFromInt(3000),
		PaymentChannel: "cash",
	})
	if err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	total, err := models.GetOperatingExpenseTotal(ctx, from, to)
	if err != nil {
		t.Fatalf("GetOperatingExpenseTotal: %v", err)
	}
	// only the toll counts; the 20000 vendor settlement was booked at trip time
	if total.Cmp(decimal.NewFromInt(3000)) != 0 {
		t.Fatalf("expected operating expense 3000; got %s", total)
	}

	rows, err := models.GetCashOutflowByModule(ctx, from, to)
	if err != nil {
		t.Fatalf("GetCashOutflowByModule: %v", err)
	}
	byModule := map[models.CashSourceModule]decimal.Decimal{}
	for _, row := range rows {
		byModule[row.SourceModule] = row.Total
	}
	if byModule[models.CashSourcePayable].Cmp(decimal.NewFromInt(20000)) != 0 {
		t.Fatalf("expected payable outflow 20000; got %s", byModule[models.CashSourcePayable])
	}
	if byModule[models.CashSourceExpense].Cmp(decimal.NewFromInt(3000)) != 0 {
		t.Fatalf("expected expense outflow 3000; got %s", byModule[models.CashSourceExpense])
	}
}

func TestPayrollRunDisbursesOnce(t *testing.T) {
	ctx := setupIntegration(t)
	account := mustCreateCashAccount(t, ctx, "Office Cash Box")

	run, err := models.CreatePayrollRun(ctx, &models.NewPayrollRun{
		PeriodLabel: "2026-03",
		Items: []models.NewPayrollItem{
			{StaffName: "Driver A", Amount: decimal.NewFromInt(250000)},
			{StaffName: "Driver B", Amount: decimal.NewFromInt(230000)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePayrollRun: %v", err)
	}
	if run.TotalAmount.Cmp(decimal.NewFromInt(480000)) != 0 {
		t.Fatalf("expected total 480000; got %s", run.TotalAmount)
	}
	if run.Status != models.PayrollRunStatusDraft {
		t.Fatalf("expected Draft status; got %s", run.Status)
	}

	disbursed, err := models.DisbursePayrollRun(ctx, run.ID, account.ID)
	if err != nil {
		t.Fatalf("DisbursePayrollRun: %v", err)
	}
	if disbursed.Status != models.PayrollRunStatusDisbursed {
		t.Fatalf("expected Disbursed status; got %s", disbursed.Status)
	}

	// one register row for the whole batch
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&models.CashTransaction{}).
		Where("source_module = ?", models.CashSourcePayroll).
		Count(&count).Error; err != nil {
		t.Fatalf("count payroll cash rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 payroll cash row; got %d", count)
	}

	// second disbursal is rejected
	if _, err := models.DisbursePayrollRun(ctx, run.ID, account.ID); err == nil {
		t.Fatal("expected second disbursal to fail")
	}
}
