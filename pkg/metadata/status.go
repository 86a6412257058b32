package metadata

import "fmt"

// EquipmentStatus describes the registry state of a single unit.
type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "available"
	EquipmentCheckedOut  EquipmentStatus = "checked_out"
	EquipmentMaintenance EquipmentStatus = "maintenance"
	EquipmentRetired     EquipmentStatus = "retired"
)

func NewEquipmentStatus(value string) (EquipmentStatus, error) {
	status := EquipmentStatus(value)
	if !status.isValid() {
		return "", fmt.Errorf("invalid equipment status: %s", value)
	}
	return status, nil
}

func (s EquipmentStatus) isValid() bool {
	switch s {
	case EquipmentAvailable, EquipmentCheckedOut, EquipmentMaintenance, EquipmentRetired:
		return true
	default:
		return false
	}
}

// RequestStatus is the lifecycle state of a transfer request.
type RequestStatus string

const (
	RequestPending          RequestStatus = "pending"
	RequestRequiresApproval RequestStatus = "requires_approval"
	RequestAccepted         RequestStatus = "accepted"
	RequestRejected         RequestStatus = "rejected"
	RequestCancelled        RequestStatus = "cancelled"
	RequestExpired          RequestStatus = "expired"
	RequestCompleted        RequestStatus = "completed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestRejected, RequestCancelled, RequestExpired, RequestCompleted:
		return true
	default:
		return false
	}
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

type CheckoutStatus string

const (
	CheckoutActive   CheckoutStatus = "active"
	CheckoutReturned CheckoutStatus = "returned"
)

// RequestType distinguishes a request aimed at one unit from a request
// broadcast to every holder of a category.
type RequestType string

const (
	RequestDirect    RequestType = "direct"
	RequestBroadcast RequestType = "broadcast"
)

func NewRequestType(value string) (RequestType, error) {
	t := RequestType(value)
	switch t {
	case RequestDirect, RequestBroadcast:
		return t, nil
	default:
		return "", fmt.Errorf("invalid request type: %s", value)
	}
}

// TransferType records how a ledger entry came to be.
type TransferType string

const (
	TransferPeer     TransferType = "peer"
	TransferCheckout TransferType = "checkout"
	TransferCheckin  TransferType = "checkin"
	TransferHandover TransferType = "handover"
)
