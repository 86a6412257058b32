package models

import (
	"time"

	"github.com/cpusmsng/vercajch/pkg/metadata"
)

type Checkout struct {
	ID          int  `json:"id" db:"id"`
	EquipmentID int  `json:"equipment_id" db:"equipment_id"`
	UserID      int  `json:"user_id" db:"user_id"`
	LocationID  *int `json:"location_id,omitempty" db:"location_id"`

	CheckoutAt       time.Time  `json:"checkout_at" db:"checkout_at"`
	ExpectedReturnAt *time.Time `json:"expected_return_at,omitempty" db:"expected_return_at"`
	ActualReturnAt   *time.Time `json:"actual_return_at,omitempty" db:"actual_return_at"`

	CheckoutCondition *string  `json:"checkout_condition,omitempty" db:"checkout_condition"`
	CheckoutPhotoURL  *string  `json:"checkout_photo_url,omitempty" db:"checkout_photo_url"`
	CheckoutNotes     *string  `json:"checkout_notes,omitempty" db:"checkout_notes"`
	CheckoutGPSLat    *float64 `json:"checkout_gps_lat,omitempty" db:"checkout_gps_lat"`
	CheckoutGPSLng    *float64 `json:"checkout_gps_lng,omitempty" db:"checkout_gps_lng"`

	ReturnCondition *string  `json:"return_condition,omitempty" db:"return_condition"`
	ReturnPhotoURL  *string  `json:"return_photo_url,omitempty" db:"return_photo_url"`
	ReturnNotes     *string  `json:"return_notes,omitempty" db:"return_notes"`
	ReturnGPSLat    *float64 `json:"return_gps_lat,omitempty" db:"return_gps_lat"`
	ReturnGPSLng    *float64 `json:"return_gps_lng,omitempty" db:"return_gps_lng"`

	CheckedOutBy *int `json:"checked_out_by,omitempty" db:"checked_out_by"`
	CheckedInBy  *int `json:"checked_in_by,omitempty" db:"checked_in_by"`

	// Overdue is derived at query time (active and past expected return),
	// never stored.
	Status metadata.CheckoutStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (c *Checkout) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   c.ID,
		ResourceType: "checkout",
	}
}

func (c *Checkout) IsOverdue(now time.Time) bool {
	return c.Status == metadata.CheckoutActive &&
		c.ExpectedReturnAt != nil && c.ExpectedReturnAt.Before(now)
}
