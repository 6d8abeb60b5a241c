package models_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/models"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

func TestLedgerRunningBalanceFoldAndHistory(t *testing.T) {
	ctx := setupIntegration(t)
	client := mustCreateClient(t, ctx, "Shwe Taung Cement")

	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day5 := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	// credit 40000 (trip booked), then debit 40000 (payment received)
	first, err := models.CreateLedgerEntry(ctx, &models.NewLedgerEntry{
		LedgerType:  models.LedgerTypeClient,
		EntityId:    client.ID,
		EntryDate:   day1,
		Description: "Freight Yangon -> Mandalay",
		Credit:      decimal.NewFromInt(40000),
	})
	if err != nil {
		t.Fatalf("CreateLedgerEntry(credit): %v", err)
	}
	if first.RunningBalance.Cmp(decimal.NewFromInt(40000)) != 0 {
		t.Fatalf("expected running balance 40000 after credit; got %s", first.RunningBalance)
	}

	second, err := models.CreateLedgerEntry(ctx, &models.NewLedgerEntry{
		LedgerType:  models.LedgerTypeClient,
		EntityId:    client.ID,
		EntryDate:   day5,
		Description: "Payment received",
		Debit:       decimal.NewFromInt(40000),
	})
	if err != nil {
		t.Fatalf("CreateLedgerEntry(debit): %v", err)
	}
	if !second.RunningBalance.IsZero() {
		t.Fatalf("expected running balance 0 after debit; got %s", second.RunningBalance)
	}

	balance, err := models.GetRunningBalance(ctx, models.LedgerTypeClient, client.ID)
	if err != nil {
		t.Fatalf("GetRunningBalance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("expected balance 0; got %s", balance)
	}

	// cached client balance tracks the ledger
	fresh, err := models.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if !fresh.Balance.IsZero() {
		t.Fatalf("expected cached client balance 0; got %s", fresh.Balance)
	}

	// history newest first
	history, err := models.GetLedgerHistory(ctx, models.LedgerTypeClient, client.ID, nil, nil, 0)
	if err != nil {
		t.Fatalf("GetLedgerHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries; got %d", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Fatalf("expected history ordered newest first; got ids %d, %d", history[0].ID, history[1].ID)
	}

	// inclusive date bounds
	bounded, err := models.GetLedgerHistory(ctx, models.LedgerTypeClient, client.ID, &day1, &day1, 0)
	if err != nil {
		t.Fatalf("GetLedgerHistory(bounded): %v", err)
	}
	if len(bounded) != 1 || bounded[0].ID != first.ID {
		t.Fatalf("expected only the day-1 entry; got %d entries", len(bounded))
	}
}

func TestLedgerSameDateTiebreakByInsertionOrder(t *testing.T) {
	ctx := setupIntegration(t)
	client := mustCreateClient(t, ctx, "Ayeyarwady Agro Traders")

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for _, amount := range []int64{1000, 2000, 3000} {
		_, err := models.CreateLedgerEntry(ctx, &models.NewLedgerEntry{
			LedgerType:  models.LedgerTypeClient,
			EntityId:    client.ID,
			EntryDate:   day,
			Description: "Freight",
			Credit:      decimal.NewFromInt(amount),
		})
		if err != nil {
			t.Fatalf("CreateLedgerEntry: %v", err)
		}
	}

	balance, err := models.GetRunningBalance(ctx, models.LedgerTypeClient, client.ID)
	if err != nil {
		t.Fatalf("GetRunningBalance: %v", err)
	}
	if balance.Cmp(decimal.NewFromInt(6000)) != 0 {
		t.Fatalf("expected balance 6000; got %s", balance)
	}

	history, err := models.GetLedgerHistory(ctx, models.LedgerTypeClient, client.ID, nil, nil, 0)
	if err != nil {
		t.Fatalf("GetLedgerHistory: %v", err)
	}
	// same date: higher id first
	for i := 1; i < len(history); i++ {
		if history[i-1].ID < history[i].ID {
			t.Fatalf("expected descending ids on same date; got %d before %d", history[i-1].ID, history[i].ID)
		}
	}
}

func TestLedgerValidationCollectsAllViolations(t *testing.T) {
	ctx := setupIntegration(t)

	_, err := models.CreateLedgerEntry(ctx, &models.NewLedgerEntry{
		LedgerType: models.LedgerTypeClient,
		EntityId:   999,
		Debit:      decimal.NewFromInt(-100),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError; got %T: %v", err, err)
	}

	wantFragments := []string{
		"entry date is required",
		"description is required",
		"debit amount must not be negative",
		"client not found or inactive",
	}
	for _, fragment := range wantFragments {
		found := false
		for _, v := range ve.Violations {
			if strings.Contains(v, fragment) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected violation containing %q; got %v", fragment, ve.Violations)
		}
	}
}

func TestLedgerHistoryIncludesIntradayEntriesOnEndDate(t *testing.T) {
	ctx := setupIntegration(t)
	account := mustCreateCashAccount(t, ctx, "Office Cash Box")

	// payroll-style entry with a wall-clock timestamp inside the day
	_, err := models.CreateLedgerEntry(ctx, &models.NewLedgerEntry{
		LedgerType:  models.LedgerTypeCashBank,
		EntityId:    account.ID,
		EntryDate:   time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC),
		Description: "Payroll 2026-03",
		Debit:       decimal.NewFromInt(480000),
	})
	if err != nil {
		t.Fatalf("CreateLedgerEntry: %v", err)
	}

	// range ends on the entry's calendar date at midnight
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	history, err := models.GetLedgerHistory(ctx, models.LedgerTypeCashBank, account.ID, &from, &to, 0)
	if err != nil {
		t.Fatalf("GetLedgerHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected the intraday entry on the end date to be included; got %d entries", len(history))
	}

	// the day before the entry excludes it
	before := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	history, err = models.GetLedgerHistory(ctx, models.LedgerTypeCashBank, account.ID, &from, &before, 0)
	if err != nil {
		t.Fatalf("GetLedgerHistory(before): %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no entries before the entry date; got %d", len(history))
	}
}

func TestLedgerRejectsEntityDeactivatedAfterValidation(t *testing.T) {
	ctx := setupIntegration(t)
	client := mustCreateClient(t, ctx, "Shwe Taung Cement")

	db := config.GetDB()

	// Hold the client's row lock so CreateLedgerEntry passes validation (a
	// plain count, not blocked by the lock) and then queues behind us at the
	// FOR UPDATE; deactivate and commit before letting it through.
	holder := db.Begin()
	if holder.Error != nil {
		t.Fatalf("begin holder tx: %v", holder.Error)
	}
	var locked models.Client
	if err := holder.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", client.ID).First(&locked).Error; err != nil {
		t.Fatalf("lock client row: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := models.CreateLedgerEntry(ctx, &models.NewLedgerEntry{
			LedgerType:  models.LedgerTypeClient,
			EntityId:    client.ID,
			EntryDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Description: "Freight",
			Credit:      decimal.NewFromInt(1000),
		})
		errCh <- err
	}()

	// give the post time to clear validation and block on the row lock
	time.Sleep(500 * time.Millisecond)
	if err := holder.Model(&models.Client{}).
		Where("id = ?", client.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate client: %v", err)
	}
	if err := holder.Commit().Error; err != nil {
		t.Fatalf("commit holder tx: %v", err)
	}

	// rejected under the lock (ErrorRecordNotFound) or, if the post had not
	// reached validation yet, by the pre-check (ValidationError)
	err := <-errCh
	if !errors.Is(err, utils.ErrorRecordNotFound) && !utils.IsValidationError(err) {
		t.Fatalf("expected post against freshly deactivated client to be rejected; got %v", err)
	}

	// nothing was written
	history, herr := models.GetLedgerHistory(ctx, models.LedgerTypeClient, client.ID, nil, nil, 0)
	if herr != nil {
		t.Fatalf("GetLedgerHistory: %v", herr)
	}
	if len(history) != 0 {
		t.Fatalf("expected no ledger entries; got %d", len(history))
	}
}

func TestLedgerRejectsDeactivatedEntity(t *testing.T) {
	ctx := setupIntegration(t)
	client := mustCreateClient(t, ctx, "City Mart Distribution")
	if _, err := models.ToggleActiveClient(ctx, client.ID, false); err != nil {
		t.Fatalf("ToggleActiveClient: %v", err)
	}

	_, err := models.CreateLedgerEntry(ctx, &models.NewLedgerEntry{
		LedgerType:  models.LedgerTypeClient,
		EntityId:    client.ID,
		EntryDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "Freight",
		Credit:      decimal.NewFromInt(100),
	})
	if !utils.IsValidationError(err) {
		t.Fatalf("expected validation error for inactive client; got %v", err)
	}
}

func TestLedgerEntriesAreImmutable(t *testing.T) {
	ctx := setupIntegration(t)
	client := mustCreateClient(t, ctx, "Immutable Freight Ltd")

	entry, err := models.CreateLedgerEntry(ctx, &models.NewLedgerEntry{
		LedgerType:  models.LedgerTypeClient,
		EntityId:    client.ID,
		EntryDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "Freight",
		Credit:      decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("CreateLedgerEntry: %v", err)
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(entry).Update("Description", "edited").Error; err == nil {
		t.Fatal("expected update on ledger entry to be rejected")
	}
	if err := db.WithContext(ctx).Delete(entry).Error; err == nil {
		t.Fatal("expected delete on ledger entry to be rejected")
	}
}
