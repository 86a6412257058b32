package models

import (
	"time"

	"github.com/cpusmsng/vercajch/pkg/metadata"
)

// TransferRequest is a requester's ask for equipment: either a direct ask
// for one unit, or a broadcast ask for any unit of a category answered
// through offers.
type TransferRequest struct {
	ID           int                  `json:"id" db:"id"`
	RequestType  metadata.RequestType `json:"request_type" db:"request_type"`
	EquipmentID  *int                 `json:"equipment_id,omitempty" db:"equipment_id"`
	CategoryID   *int                 `json:"category_id,omitempty" db:"category_id"`
	RequesterID  int                  `json:"requester_id" db:"requester_id"`
	HolderID     *int                 `json:"holder_id,omitempty" db:"holder_id"`
	LocationID   *int                 `json:"location_id,omitempty" db:"location_id"`
	LocationNote *string              `json:"location_note,omitempty" db:"location_note"`

	NeededFrom  *time.Time `json:"needed_from,omitempty" db:"needed_from"`
	NeededUntil *time.Time `json:"needed_until,omitempty" db:"needed_until"`
	Message     *string    `json:"message,omitempty" db:"message"`

	Status                 metadata.RequestStatus `json:"status" db:"status"`
	RequiresLeaderApproval bool                   `json:"requires_leader_approval" db:"requires_leader_approval"`
	ApprovedBy             *int                   `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt             *time.Time             `json:"approved_at,omitempty" db:"approved_at"`
	RejectionReason        *string                `json:"rejection_reason,omitempty" db:"rejection_reason"`

	RespondedAt *time.Time `json:"responded_at,omitempty" db:"responded_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

func (r *TransferRequest) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   r.ID,
		ResourceType: "transfer_request",
	}
}

// TransferOffer is a holder's proposal to satisfy a broadcast request with
// a specific unit they currently hold.
type TransferOffer struct {
	ID          int                  `json:"id" db:"id"`
	RequestID   int                  `json:"request_id" db:"request_id"`
	OffererID   int                  `json:"offerer_id" db:"offerer_id"`
	EquipmentID int                  `json:"equipment_id" db:"equipment_id"`
	Message     *string              `json:"message,omitempty" db:"message"`
	Status      metadata.OfferStatus `json:"status" db:"status"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
}

func (o *TransferOffer) CreateLogView() AuditLog {
	return AuditLog{
		ResourceID:   o.ID,
		ResourceType: "transfer_offer",
	}
}
