package transfers

import (
	"fmt"
	"time"

	"github.com/cpusmsng/vercajch/internal/events"
	custom_error "github.com/cpusmsng/vercajch/pkg/errors"
	"github.com/cpusmsng/vercajch/pkg/metadata"
	"github.com/cpusmsng/vercajch/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
)

type CreateRequestRequest struct {
	RequestType  string     `json:"request_type" binding:"required"`
	EquipmentID  *int       `json:"equipment_id"`
	CategoryID   *int       `json:"category_id"`
	LocationID   *int       `json:"location_id"`
	LocationNote *string    `json:"location_note"`
	NeededFrom   *time.Time `json:"needed_from"`
	NeededUntil  *time.Time `json:"needed_until"`
	Message      *string    `json:"message"`
}

// CreateRequest opens a transfer request. Direct requests are validated
// against the registry snapshot; broadcast requests only need a category.
func (s *TransferService) CreateRequest(requesterID int, payload CreateRequestRequest) (*models.TransferRequest, error) {
	requestType, err := metadata.NewRequestType(payload.RequestType)
	if err != nil {
		return nil, custom_error.Validation("%v", err)
	}

	request := &models.TransferRequest{
		RequestType:  requestType,
		RequesterID:  requesterID,
		LocationID:   payload.LocationID,
		LocationNote: payload.LocationNote,
		NeededFrom:   payload.NeededFrom,
		NeededUntil:  payload.NeededUntil,
		Message:      payload.Message,
		Status:       metadata.RequestPending,
	}

	switch requestType {
	case metadata.RequestDirect:
		if payload.EquipmentID == nil {
			return nil, custom_error.Validation("equipment_id is required for a direct request")
		}
		if err := s.prepareDirectRequest(request, *payload.EquipmentID, requesterID); err != nil {
			return nil, err
		}
	case metadata.RequestBroadcast:
		if payload.CategoryID == nil {
			return nil, custom_error.Validation("category_id is required for a broadcast request")
		}
		request.CategoryID = payload.CategoryID
	}

	expiresAt := time.Now().Add(requestLifetime)
	request.ExpiresAt = &expiresAt

	requestID, err := s.repo.InsertRequest(request)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer request: %w", err)
	}
	request.ID = requestID

	s.auditLog.LogAs(requesterID, "create", map[string]interface{}{
		"request_type": string(requestType),
		"status":       string(request.Status),
	}, request)
	s.publisher.Publish(events.TopicTransfers, events.TransferRequested, requestID, request)

	return s.repo.GetRequest(requestID)
}

func (s *TransferService) prepareDirectRequest(request *models.TransferRequest, equipmentID int, requesterID int) error {
	equipment, err := s.equipment.GetEquipment(equipmentID)
	if err != nil {
		return fmt.Errorf("failed to fetch equipment: %w", err)
	}
	if equipment == nil {
		return custom_error.NotFound("equipment %d not found", equipmentID)
	}
	if !equipment.IsTransferable {
		return custom_error.InvalidState("equipment %d is not transferable", equipmentID)
	}
	if equipment.CurrentHolderID != nil && *equipment.CurrentHolderID == requesterID {
		return custom_error.Conflict("you already hold equipment %d", equipmentID)
	}

	pending, err := s.repo.HasPendingRequest(equipmentID, requesterID)
	if err != nil {
		return fmt.Errorf("failed to check pending requests: %w", err)
	}
	if pending {
		return custom_error.Conflict("a pending request for equipment %d already exists", equipmentID)
	}

	requiresApproval, err := s.equipment.RequiresApproval(equipmentID)
	if err != nil {
		return fmt.Errorf("failed to resolve approval requirement: %w", err)
	}

	request.EquipmentID = &equipmentID
	request.HolderID = equipment.CurrentHolderID
	if requiresApproval {
		request.RequiresLeaderApproval = true
		request.Status = metadata.RequestRequiresApproval
	}

	return nil
}

type RespondRequest struct {
	Action          string  `json:"action" binding:"required"`
	RejectionReason *string `json:"rejection_reason"`
}

// RespondToRequest lets the current holder of a directly requested unit
// accept or reject. Accepting opens a ledger entry awaiting two-sided
// confirmation; custody does not move yet.
func (s *TransferService) RespondToRequest(requestID int, responderID int, payload RespondRequest) (*models.TransferRequest, error) {
	if payload.Action != "accept" && payload.Action != "reject" {
		return nil, custom_error.Validation("action must be accept or reject")
	}

	request, err := s.repo.GetRequest(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}
	if request == nil {
		return nil, custom_error.NotFound("transfer request %d not found", requestID)
	}
	if request.RequestType != metadata.RequestDirect || request.EquipmentID == nil {
		return nil, custom_error.InvalidState("only direct requests take a response; broadcast requests take offers")
	}
	if request.Status != metadata.RequestPending {
		return nil, custom_error.InvalidState("request %d is %s, not pending", requestID, request.Status)
	}

	equipment, err := s.equipment.GetEquipment(*request.EquipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch equipment: %w", err)
	}
	if equipment == nil || equipment.CurrentHolderID == nil || *equipment.CurrentHolderID != responderID {
		return nil, custom_error.Forbidden("only the current holder may respond to request %d", requestID)
	}

	now := time.Now()

	if payload.Action == "reject" {
		err = s.repo.InTransaction(func(tx *goqu.TxDatabase) error {
			ok, err := s.repo.TransitionRequest(tx, requestID, []metadata.RequestStatus{metadata.RequestPending}, metadata.RequestRejected, goqu.Record{
				"responded_at":     now,
				"rejection_reason": payload.RejectionReason,
			})
			if err != nil {
				return err
			}
			if !ok {
				return custom_error.Conflict("request %d is no longer pending", requestID)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.auditLog.LogAs(responderID, "reject", payload, request)
		s.publisher.Publish(events.TopicTransfers, events.TransferRejected, requestID, nil)

		return s.repo.GetRequest(requestID)
	}

	var transferID int
	err = s.repo.InTransaction(func(tx *goqu.TxDatabase) error {
		ok, err := s.repo.TransitionRequest(tx, requestID, []metadata.RequestStatus{metadata.RequestPending}, metadata.RequestAccepted, goqu.Record{
			"responded_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return custom_error.Conflict("request %d is no longer pending", requestID)
		}

		transferID, err = s.repo.InsertTransfer(tx, &models.Transfer{
			EquipmentID:  *request.EquipmentID,
			RequestID:    &requestID,
			FromUserID:   responderID,
			ToUserID:     request.RequesterID,
			LocationID:   request.LocationID,
			TransferType: metadata.TransferPeer,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transfer request accepted",
		zap.Int("requestID", requestID),
		zap.Int("transferID", transferID),
	)
	s.auditLog.LogAs(responderID, "accept", map[string]interface{}{"transfer_id": transferID}, request)
	s.publisher.Publish(events.TopicTransfers, events.TransferAccepted, requestID, map[string]interface{}{"transfer_id": transferID})

	return s.repo.GetRequest(requestID)
}

// CancelRequest withdraws an open request. Only the requester may cancel,
// unless the caller carries the cancel-any permission.
func (s *TransferService) CancelRequest(requestID int, callerID int, cancelAny bool) (*models.TransferRequest, error) {
	request, err := s.repo.GetRequest(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}
	if request == nil {
		return nil, custom_error.NotFound("transfer request %d not found", requestID)
	}
	if request.RequesterID != callerID && !cancelAny {
		return nil, custom_error.Forbidden("only the requester may cancel request %d", requestID)
	}

	cancellable := []metadata.RequestStatus{metadata.RequestPending, metadata.RequestRequiresApproval}
	if request.Status != metadata.RequestPending && request.Status != metadata.RequestRequiresApproval {
		return nil, custom_error.InvalidState("request %d is %s and can no longer be cancelled", requestID, request.Status)
	}

	err = s.repo.InTransaction(func(tx *goqu.TxDatabase) error {
		ok, err := s.repo.TransitionRequest(tx, requestID, cancellable, metadata.RequestCancelled, goqu.Record{})
		if err != nil {
			return err
		}
		if !ok {
			return custom_error.Conflict("request %d is no longer open", requestID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditLog.LogAs(callerID, "cancel", nil, request)
	s.publisher.Publish(events.TopicTransfers, events.TransferCancelled, requestID, nil)

	return s.repo.GetRequest(requestID)
}

type ApprovalRequest struct {
	Action          string  `json:"action" binding:"required"`
	RejectionReason *string `json:"rejection_reason"`
}

// ApproveRequest resolves the leader gate. Approval releases the request
// into the pending pool; rejection closes it. The approver must lead the
// requester's or the holder's team, unless approveAll is set.
func (s *TransferService) ApproveRequest(requestID int, approverID int, approveAll bool, payload ApprovalRequest) (*models.TransferRequest, error) {
	if payload.Action != "approve" && payload.Action != "reject" {
		return nil, custom_error.Validation("action must be approve or reject")
	}

	request, err := s.repo.GetRequest(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}
	if request == nil {
		return nil, custom_error.NotFound("transfer request %d not found", requestID)
	}
	if request.Status != metadata.RequestRequiresApproval {
		return nil, custom_error.InvalidState("request %d is %s, not awaiting approval", requestID, request.Status)
	}

	if !approveAll {
		authorized, err := s.canApprove(approverID, request)
		if err != nil {
			return nil, err
		}
		if !authorized {
			return nil, custom_error.Forbidden("request %d is outside your team", requestID)
		}
	}

	now := time.Now()
	from := []metadata.RequestStatus{metadata.RequestRequiresApproval}

	err = s.repo.InTransaction(func(tx *goqu.TxDatabase) error {
		var ok bool
		var err error
		if payload.Action == "approve" {
			ok, err = s.repo.TransitionRequest(tx, requestID, from, metadata.RequestPending, goqu.Record{
				"approved_by": approverID,
				"approved_at": now,
			})
		} else {
			ok, err = s.repo.TransitionRequest(tx, requestID, from, metadata.RequestRejected, goqu.Record{
				"responded_at":     now,
				"rejection_reason": payload.RejectionReason,
			})
		}
		if err != nil {
			return err
		}
		if !ok {
			return custom_error.Conflict("request %d is no longer awaiting approval", requestID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditLog.LogAs(approverID, "approval_"+payload.Action, payload, request)
	if payload.Action == "approve" {
		s.publisher.Publish(events.TopicTransfers, events.TransferApproved, requestID, nil)
	} else {
		s.publisher.Publish(events.TopicTransfers, events.TransferRejected, requestID, nil)
	}

	return s.repo.GetRequest(requestID)
}

func (s *TransferService) canApprove(approverID int, request *models.TransferRequest) (bool, error) {
	ok, err := s.users.IsTeamMember(approverID, request.RequesterID)
	if err != nil {
		return false, fmt.Errorf("failed to check team membership: %w", err)
	}
	if ok {
		return true, nil
	}
	if request.HolderID != nil {
		ok, err = s.users.IsTeamMember(approverID, *request.HolderID)
		if err != nil {
			return false, fmt.Errorf("failed to check team membership: %w", err)
		}
	}
	return ok, nil
}

// GetRequest returns one request by ID.
func (s *TransferService) GetRequest(requestID int) (*models.TransferRequest, error) {
	request, err := s.repo.GetRequest(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}
	if request == nil {
		return nil, custom_error.NotFound("transfer request %d not found", requestID)
	}
	return request, nil
}

// SentRequests lists requests opened by the caller, newest first.
func (s *TransferService) SentRequests(requesterID int, status string) ([]models.TransferRequest, error) {
	return s.repo.GetRequestsByRequester(requesterID, status)
}

// ReceivedRequests lists pending direct requests aimed at units the caller
// currently holds.
func (s *TransferService) ReceivedRequests(holderID int) ([]models.TransferRequest, error) {
	equipmentIDs, err := s.equipment.HeldEquipmentIDs(holderID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve held equipment: %w", err)
	}
	return s.repo.GetPendingRequestsForEquipment(equipmentIDs)
}

// AvailableRequests lists open broadcast requests from other users the
// caller could answer with an offer.
func (s *TransferService) AvailableRequests(callerID int) ([]models.TransferRequest, error) {
	return s.repo.GetOpenBroadcastRequests(callerID)
}

// PendingApprovals lists gated requests whose requester or holder belongs
// to the leader's team.
func (s *TransferService) PendingApprovals(leaderID int) ([]models.TransferRequest, error) {
	teamIDs, err := s.users.TeamMemberIDs(leaderID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve team: %w", err)
	}
	return s.repo.GetRequestsAwaitingApproval(teamIDs)
}
