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

type CreateOfferRequest struct {
	EquipmentID int     `json:"equipment_id" binding:"required"`
	Message     *string `json:"message"`
}

// CreateOffer answers an open broadcast request with a unit the offerer
// currently holds.
func (s *TransferService) CreateOffer(requestID int, offererID int, payload CreateOfferRequest) (*models.TransferOffer, error) {
	request, err := s.repo.GetRequest(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}
	if request == nil {
		return nil, custom_error.NotFound("transfer request %d not found", requestID)
	}
	if request.RequestType != metadata.RequestBroadcast {
		return nil, custom_error.InvalidState("offers apply to broadcast requests only")
	}
	if request.Status != metadata.RequestPending {
		return nil, custom_error.InvalidState("request %d is %s, not open for offers", requestID, request.Status)
	}
	if request.RequesterID == offererID {
		return nil, custom_error.Conflict("you cannot offer on your own request")
	}

	equipment, err := s.equipment.GetEquipment(payload.EquipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch equipment: %w", err)
	}
	if equipment == nil {
		return nil, custom_error.NotFound("equipment %d not found", payload.EquipmentID)
	}
	if equipment.CurrentHolderID == nil || *equipment.CurrentHolderID != offererID {
		return nil, custom_error.Forbidden("you can only offer equipment you currently hold")
	}
	if !equipment.IsTransferable {
		return nil, custom_error.InvalidState("equipment %d is not transferable", payload.EquipmentID)
	}

	offer := &models.TransferOffer{
		RequestID:   requestID,
		OffererID:   offererID,
		EquipmentID: payload.EquipmentID,
		Message:     payload.Message,
		Status:      metadata.OfferPending,
	}

	offerID, err := s.repo.InsertOffer(offer)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}
	offer.ID = offerID

	s.auditLog.LogAs(offererID, "create", map[string]interface{}{"request_id": requestID}, offer)
	s.publisher.Publish(events.TopicTransfers, events.TransferOfferCreated, requestID, offer)

	return s.repo.GetOffer(offerID)
}

// AcceptOffer resolves a broadcast request: the winning offer is accepted,
// every sibling is rejected, the request is backfilled with the winning
// unit and holder, and a ledger entry opens. All of it lands in one
// transaction or none of it does.
func (s *TransferService) AcceptOffer(offerID int, callerID int) (*models.TransferRequest, error) {
	offer, err := s.repo.GetOffer(offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch offer: %w", err)
	}
	if offer == nil {
		return nil, custom_error.NotFound("offer %d not found", offerID)
	}

	request, err := s.repo.GetRequest(offer.RequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}
	if request == nil {
		return nil, custom_error.NotFound("transfer request %d not found", offer.RequestID)
	}
	if request.RequesterID != callerID {
		return nil, custom_error.Forbidden("only the requester may accept an offer")
	}
	if offer.Status != metadata.OfferPending {
		return nil, custom_error.InvalidState("offer %d is %s, not pending", offerID, offer.Status)
	}

	now := time.Now()
	var transferID int

	err = s.repo.InTransaction(func(tx *goqu.TxDatabase) error {
		won, err := s.repo.AcceptOffer(tx, offerID)
		if err != nil {
			return err
		}
		if !won {
			return custom_error.InvalidState("offer %d is no longer pending", offerID)
		}

		ok, err := s.repo.TransitionRequest(tx, offer.RequestID, []metadata.RequestStatus{metadata.RequestPending}, metadata.RequestAccepted, goqu.Record{
			"equipment_id": offer.EquipmentID,
			"holder_id":    offer.OffererID,
			"responded_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return custom_error.Conflict("request %d is no longer pending", offer.RequestID)
		}

		if err := s.repo.RejectSiblingOffers(tx, offer.RequestID, offerID); err != nil {
			return err
		}

		transferID, err = s.repo.InsertTransfer(tx, &models.Transfer{
			EquipmentID:  offer.EquipmentID,
			RequestID:    &offer.RequestID,
			FromUserID:   offer.OffererID,
			ToUserID:     request.RequesterID,
			LocationID:   request.LocationID,
			TransferType: metadata.TransferPeer,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("broadcast request resolved",
		zap.Int("requestID", offer.RequestID),
		zap.Int("offerID", offerID),
		zap.Int("transferID", transferID),
	)
	s.auditLog.LogAs(callerID, "accept", map[string]interface{}{"transfer_id": transferID}, offer)
	s.publisher.Publish(events.TopicTransfers, events.TransferOfferAccepted, offerID, map[string]interface{}{"transfer_id": transferID})
	s.publisher.Publish(events.TopicTransfers, events.TransferAccepted, offer.RequestID, map[string]interface{}{"transfer_id": transferID})

	return s.repo.GetRequest(offer.RequestID)
}

// RequestOffers lists all offers made on a request. Visible to the
// requester only.
func (s *TransferService) RequestOffers(requestID int, callerID int) ([]models.TransferOffer, error) {
	request, err := s.repo.GetRequest(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}
	if request == nil {
		return nil, custom_error.NotFound("transfer request %d not found", requestID)
	}
	if request.RequesterID != callerID {
		return nil, custom_error.Forbidden("only the requester may list offers")
	}
	return s.repo.GetOffersByRequest(requestID)
}
