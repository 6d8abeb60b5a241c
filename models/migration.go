package models

import "bitbucket.org/mmdatafocus/transport_backend/config"

// MigrateTable runs gorm auto-migration for every table the engine owns.
// Order matters only for readability; gorm resolves references.
func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Business{},
		&Client{},
		&Vendor{},
		&MoneyAccount{},
		&LedgerEntry{},
		&CashTransaction{},
		&Trip{},
		&ClientPayment{},
		&VendorPayment{},
		&Expense{},
		&PayrollRun{},
		&PayrollItem{},
	)
}
