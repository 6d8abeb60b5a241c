// seed-demo creates a demo business with a starter set of clients, vendors
// and money accounts so a fresh environment has something to book against.
// Idempotent: rerunning against the same DB reuses the existing business.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/transport_backend/config"
	"bitbucket.org/mmdatafocus/transport_backend/models"
	"bitbucket.org/mmdatafocus/transport_backend/utils"
	"gorm.io/gorm"
)

const demoBusinessName = "Golden Road Logistics"

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	var business models.Business
	err := db.WithContext(ctx).Where("name = ?", demoBusinessName).First(&business).Error
	if err == gorm.ErrRecordNotFound {
		created, err := models.CreateBusiness(ctx, &models.NewBusiness{
			Name:        demoBusinessName,
			ContactName: "U Kyaw Min",
			Email:       "office@goldenroad.example",
			Phone:       "+95 9 555 0100",
			Address:     "Yangon",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create business: %v\n", err)
			os.Exit(1)
		}
		business = *created
		fmt.Printf("Created business %q (%s)\n", business.Name, business.ID)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
		os.Exit(1)
	} else {
		fmt.Printf("Reusing business %q (%s)\n", business.Name, business.ID)
	}

	ctx = utils.SetBusinessIdInContext(ctx, business.ID.String())
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	seedClients(ctx)
	seedVendors(ctx)
	seedAccounts(ctx)
	fmt.Println("Seed complete")
}

func seedClients(ctx context.Context) {
	clients := []models.NewClient{
		{Name: "Shwe Taung Cement", Phone: "+95 9 555 0201", CreditDays: 30},
		{Name: "Ayeyarwady Agro Traders", Phone: "+95 9 555 0202", CreditDays: 15},
		{Name: "City Mart Distribution", Phone: "+95 9 555 0203", CreditDays: 45},
	}
	for _, input := range clients {
		if _, err := models.CreateClient(ctx, &input); err != nil {
			if utils.IsValidationError(err) {
				// already seeded
				continue
			}
			fmt.Fprintf(os.Stderr, "failed to create client %q: %v\n", input.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Created client %q\n", input.Name)
	}
}

func seedVendors(ctx context.Context) {
	vendors := []models.NewVendor{
		{Name: "Mandalay Fleet Services", Phone: "+95 9 555 0301"},
		{Name: "Bago Truck Owners Co-op", Phone: "+95 9 555 0302"},
	}
	for _, input := range vendors {
		if _, err := models.CreateVendor(ctx, &input); err != nil {
			if utils.IsValidationError(err) {
				continue
			}
			fmt.Fprintf(os.Stderr, "failed to create vendor %q: %v\n", input.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Created vendor %q\n", input.Name)
	}
}

func seedAccounts(ctx context.Context) {
	accounts := []models.NewMoneyAccount{
		{AccountType: models.MoneyAccountTypeCash, AccountName: "Office Cash Box"},
		{AccountType: models.MoneyAccountTypeBank, AccountName: "KBZ Current", AccountNumber: "0011-2233-4455", BankName: "KBZ Bank"},
	}
	for _, input := range accounts {
		if _, err := models.CreateMoneyAccount(ctx, &input); err != nil {
			if utils.IsValidationError(err) {
				continue
			}
			fmt.Fprintf(os.Stderr, "failed to create account %q: %v\n", input.AccountName, err)
			os.Exit(1)
		}
		fmt.Printf("Created account %q\n", input.AccountName)
	}
}
