package models

import (
	"time"

	"github.com/cpusmsng/vercajch/pkg/metadata"
)

// Transfer is one row of the custody ledger: who handed which unit to whom.
// Rows are immutable after creation except for the two confirmation
// timestamps and their evidence fields. The registry holder pointer moves
// only once both sides have confirmed.
type Transfer struct {
	ID           int                   `json:"id" db:"id"`
	EquipmentID  int                   `json:"equipment_id" db:"equipment_id"`
	RequestID    *int                  `json:"request_id,omitempty" db:"request_id"`
	FromUserID   int                   `json:"from_user_id" db:"from_user_id"`
	ToUserID     int                   `json:"to_user_id" db:"to_user_id"`
	LocationID   *int                  `json:"location_id,omitempty" db:"location_id"`
	GPSLat       *float64              `json:"gps_lat,omitempty" db:"gps_lat"`
	GPSLng       *float64              `json:"gps_lng,omitempty" db:"gps_lng"`
	TransferType metadata.TransferType `json:"transfer_type" db:"transfer_type"`

	FromConfirmedAt *time.Time `json:"from_confirmed_at,omitempty" db:"from_confirmed_at"`
	ToConfirmedAt   *time.Time `json:"to_confirmed_at,omitempty" db:"to_confirmed_at"`

	ConditionAtTransfer *string `json:"condition_at_transfer,omitempty" db:"condition_at_transfer"`
	PhotoURL            *string `json:"photo_url,omitempty" db:"photo_url"`
	Notes               *string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (t *Transfer) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   t.ID,
		ResourceType: "transfer",
	}
}

// Evidence carries the condition snapshot a confirming party attaches to a
// handover, receipt, checkout or return.
type Evidence struct {
	Condition *string  `json:"condition,omitempty"`
	PhotoURL  *string  `json:"photo_url,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
	GPSLat    *float64 `json:"gps_lat,omitempty"`
	GPSLng    *float64 `json:"gps_lng,omitempty"`
}
