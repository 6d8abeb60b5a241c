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

// Trip is a freight booking. Booking a trip raises the client's receivable
// (and the vendor's payable when the load is subcontracted); no cash moves
// until a payment workflow runs.
type Trip struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	TripNumber    string          `gorm:"size:255;not null" json:"trip_number"`
	SequenceNo    decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	LrNumber      string          `gorm:"size:100" json:"lr_number"`
	TripDate      time.Time       `gorm:"not null;index" json:"trip_date"`
	ClientId      int             `gorm:"not null;index" json:"client_id"`
	VendorId      *int            `gorm:"index" json:"vendor_id"`
	Origin        string          `gorm:"size:100;not null" json:"origin"`
	Destination   string          `gorm:"size:100;not null" json:"destination"`
	VehicleNumber string          `gorm:"size:50" json:"vehicle_number"`
	FreightAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"freight_amount"`
	VendorAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"vendor_amount"`
	Status        TripStatus      `gorm:"type:enum('Booked','Completed','Cancelled');default:'Booked';not null" json:"status"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedBy     int             `gorm:"index" json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t Trip) GetId() int {
	return t.ID
}

type NewTrip struct {
	TripDate      time.Time       `json:"trip_date"`
	ClientId      int             `json:"client_id"`
	VendorId      *int            `json:"vendor_id"`
	LrNumber      string          `json:"lr_number"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	VehicleNumber string          `json:"vehicle_number"`
	FreightAmount decimal.Decimal `json:"freight_amount"`
	VendorAmount  decimal.Decimal `json:"vendor_amount"`
	Notes         string          `json:"notes"`
}

func (input *NewTrip) validate(ctx context.Context, businessId string) ([]string, error) {
	var violations []string
	if input.TripDate.IsZero() {
		violations = append(violations, "trip date is required")
	}
	if input.Origin == "" {
		violations = append(violations, "origin is required")
	}
	if input.Destination == "" {
		violations = append(violations, "destination is required")
	}
	if !input.FreightAmount.IsPositive() {
		violations = append(violations, "freight amount must be positive")
	}
	if input.VendorId != nil && !input.VendorAmount.IsPositive() {
		violations = append(violations, "vendor amount must be positive for a subcontracted trip")
	}
	if input.VendorId == nil && !input.VendorAmount.IsZero() {
		violations = append(violations, "vendor amount requires a vendor")
	}

	if input.ClientId <= 0 {
		violations = append(violations, "client id is required")
	} else if err := utils.ValidateActiveResourceId[Client](ctx, businessId, input.ClientId); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			violations = append(violations, "client not found or inactive")
		} else {
			return nil, err
		}
	}
	if input.VendorId != nil {
		if err := utils.ValidateActiveResourceId[Vendor](ctx, businessId, *input.VendorId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				violations = append(violations, "vendor not found or inactive")
			} else {
				return nil, err
			}
		}
	}
	return violations, nil
}

// CreateTrip books a trip and posts the receivable (and payable) credits in
// the same transaction.
func CreateTrip(ctx context.Context, input *NewTrip) (*Trip, error) {
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

	seqNo, err := utils.GetSequence[Trip](ctx, businessId)
	if err != nil {
		return nil, err
	}

	trip := Trip{
		BusinessId:    businessId,
		TripNumber:    fmt.Sprintf("TRP-%d", seqNo),
		SequenceNo:    decimal.NewFromInt(seqNo),
		LrNumber:      input.LrNumber,
		TripDate:      input.TripDate,
		ClientId:      input.ClientId,
		VendorId:      input.VendorId,
		Origin:        input.Origin,
		Destination:   input.Destination,
		VehicleNumber: input.VehicleNumber,
		FreightAmount: input.FreightAmount,
		VendorAmount:  input.VendorAmount,
		Status:        TripStatusBooked,
		Notes:         input.Notes,
		CreatedBy:     userId,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trip).Error; err != nil {
			return err
		}

		_, err := createLedgerEntryTx(ctx, tx, businessId, userId, &NewLedgerEntry{
			LedgerType:      LedgerTypeClient,
			EntityId:        trip.ClientId,
			EntryDate:       trip.TripDate,
			Description:     fmt.Sprintf("Freight %s -> %s", trip.Origin, trip.Destination),
			Credit:          trip.FreightAmount,
			ReferenceNumber: trip.TripNumber,
			TransactionType: "trip",
		})
		if err != nil {
			return err
		}

		if trip.VendorId != nil {
			_, err := createLedgerEntryTx(ctx, tx, businessId, userId, &NewLedgerEntry{
				LedgerType:      LedgerTypeVendor,
				EntityId:        *trip.VendorId,
				EntryDate:       trip.TripDate,
				Description:     fmt.Sprintf("Subcontract %s -> %s", trip.Origin, trip.Destination),
				Credit:          trip.VendorAmount,
				ReferenceNumber: trip.TripNumber,
				TransactionType: "trip",
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// UpdateTripStatus moves a trip between Booked, Completed and Cancelled.
// Status changes never touch the ledgers; a wrongly booked trip is reversed
// with offsetting entries, not by cancelling it.
func UpdateTripStatus(ctx context.Context, id int, status TripStatus) (*Trip, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	switch status {
	case TripStatusBooked, TripStatusCompleted, TripStatusCancelled:
	default:
		return nil, utils.NewValidationError("status must be Booked, Completed or Cancelled")
	}
	trip, err := utils.FetchModel[Trip](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&trip).Update("Status", status).Error; err != nil {
		return nil, err
	}
	return trip, nil
}

func GetTrip(ctx context.Context, id int) (*Trip, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Trip](ctx, businessId, id)
}

func ListTrips(ctx context.Context) ([]*Trip, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[Trip](ctx, businessId)
}
