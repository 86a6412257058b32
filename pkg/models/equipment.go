package models

import (
	"time"

	"github.com/cpusmsng/vercajch/pkg/metadata"
)

type Category struct {
	ID                       int     `json:"id" db:"id"`
	Name                     string  `json:"name" db:"name"`
	Code                     *string `json:"code,omitempty" db:"code"`
	TransferRequiresApproval bool    `json:"transfer_requires_approval" db:"transfer_requires_approval"`
}

// Equipment is a single physical unit tracked by the registry. The custody
// fields (Status, CurrentHolderID, CurrentLocationID) are only ever mutated
// through the equipment repository so both custody engines share one
// locking discipline.
type Equipment struct {
	ID                int                      `json:"id" db:"id"`
	Name              string                   `json:"name" db:"name"`
	SerialNumber      *string                  `json:"serial_number,omitempty" db:"serial_number"`
	CategoryID        *int                     `json:"category_id,omitempty" db:"category_id"`
	Status            metadata.EquipmentStatus `json:"status" db:"status"`
	Condition         string                   `json:"condition" db:"condition"`
	CurrentHolderID   *int                     `json:"current_holder_id,omitempty" db:"current_holder_id"`
	CurrentLocationID *int                     `json:"current_location_id,omitempty" db:"current_location_id"`
	HomeLocationID    *int                     `json:"home_location_id,omitempty" db:"home_location_id"`
	IsTransferable    bool                     `json:"is_transferable" db:"is_transferable"`

	// TransferRequiresApproval overrides the category setting when non-nil.
	TransferRequiresApproval *bool `json:"transfer_requires_approval,omitempty" db:"transfer_requires_approval"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

func (e *Equipment) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   e.ID,
		ResourceType: "equipment",
	}
}
