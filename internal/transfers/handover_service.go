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

// ConfirmHandover records the giver's half of a handover. If the receiver
// already confirmed, this call also moves custody and completes the
// originating request.
func (s *TransferService) ConfirmHandover(transferID int, callerID int, evidence models.Evidence) (*models.Transfer, error) {
	return s.confirm(transferID, callerID, evidence, false)
}

// ConfirmReceipt records the receiver's half.
func (s *TransferService) ConfirmReceipt(transferID int, callerID int, evidence models.Evidence) (*models.Transfer, error) {
	return s.confirm(transferID, callerID, evidence, true)
}

// confirm stamps one side of a transfer. Custody flips inside whichever
// transaction fills the second timestamp: the stamp is conditional on the
// column still being null, so exactly one caller observes both sides set
// and runs the flip. Re-confirming an already stamped side is a no-op.
func (s *TransferService) confirm(transferID int, callerID int, evidence models.Evidence, receiving bool) (*models.Transfer, error) {
	transfer, err := s.repo.GetTransfer(transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transfer: %w", err)
	}
	if transfer == nil {
		return nil, custom_error.NotFound("transfer %d not found", transferID)
	}

	if receiving {
		if transfer.ToUserID != callerID {
			return nil, custom_error.Forbidden("only the receiver may confirm receipt of transfer %d", transferID)
		}
	} else {
		if transfer.FromUserID != callerID {
			return nil, custom_error.Forbidden("only the giver may confirm handover of transfer %d", transferID)
		}
	}

	now := time.Now()
	var stamped, completed bool

	err = s.repo.InTransaction(func(tx *goqu.TxDatabase) error {
		var err error
		if receiving {
			stamped, err = s.repo.StampReceipt(tx, transferID, evidence, now)
		} else {
			stamped, err = s.repo.StampHandover(tx, transferID, evidence, now)
		}
		if err != nil {
			return err
		}
		if !stamped {
			return nil
		}

		current, err := s.repo.GetTransferTx(tx, transferID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("transfer %d vanished mid-transaction", transferID)
		}

		if current.FromConfirmedAt != nil && current.ToConfirmedAt != nil {
			if err := s.completeTransfer(tx, current, now); err != nil {
				return err
			}
			completed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stamped {
		eventType := events.TransferHandoverConfirmed
		action := "confirm_handover"
		if receiving {
			eventType = events.TransferReceiptConfirmed
			action = "confirm_receipt"
		}

		s.auditLog.LogAs(callerID, action, evidence, transfer)
		s.publisher.Publish(events.TopicTransfers, eventType, transferID, nil)
	}

	if completed {
		s.log.Info("custody transferred",
			zap.Int("transferID", transferID),
			zap.Int("equipmentID", transfer.EquipmentID),
			zap.Int("toUserID", transfer.ToUserID),
		)
		s.publisher.Publish(events.TopicTransfers, events.TransferCompleted, transferID, map[string]interface{}{
			"equipment_id": transfer.EquipmentID,
			"to_user_id":   transfer.ToUserID,
		})
	}

	return s.repo.GetTransfer(transferID)
}

// completeTransfer runs once per transfer, guarded by the second-stamp
// condition in confirm. It moves the holder pointer and closes the
// originating request. The request transition is conditional on accepted,
// so a request can complete at most once.
func (s *TransferService) completeTransfer(tx *goqu.TxDatabase, transfer *models.Transfer, now time.Time) error {
	if err := s.equipment.AssignHolder(tx, transfer.EquipmentID, transfer.ToUserID); err != nil {
		return fmt.Errorf("failed to move custody: %w", err)
	}

	if transfer.RequestID != nil {
		_, err := s.repo.TransitionRequest(tx, *transfer.RequestID, []metadata.RequestStatus{metadata.RequestAccepted}, metadata.RequestCompleted, goqu.Record{
			"completed_at": now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GetTransfer returns one ledger entry, visible to either party.
func (s *TransferService) GetTransfer(transferID int, callerID int) (*models.Transfer, error) {
	transfer, err := s.repo.GetTransfer(transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transfer: %w", err)
	}
	if transfer == nil {
		return nil, custom_error.NotFound("transfer %d not found", transferID)
	}
	if transfer.FromUserID != callerID && transfer.ToUserID != callerID {
		return nil, custom_error.Forbidden("transfer %d does not involve you", transferID)
	}
	return transfer, nil
}

// History lists ledger entries the user took part in, optionally narrowed
// to one unit.
func (s *TransferService) History(userID int, equipmentID *int) ([]models.Transfer, error) {
	return s.repo.GetTransferHistory(userID, equipmentID)
}
