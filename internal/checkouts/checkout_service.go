package checkouts

import (
	"fmt"
	"time"

	"github.com/cpusmsng/vercajch/internal/events"
	"github.com/cpusmsng/vercajch/pkg/auditlog"
	custom_error "github.com/cpusmsng/vercajch/pkg/errors"
	"github.com/cpusmsng/vercajch/pkg/metadata"
	"github.com/cpusmsng/vercajch/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"go.uber.org/zap"
)

// EquipmentStore is the slice of the equipment repository the checkout
// engine needs: the availability claim and the release back to the pool.
type EquipmentStore interface {
	GetEquipment(equipmentID int) (*models.Equipment, error)
	ClaimForCheckout(tx *goqu.TxDatabase, equipmentID int, holderID int, locationID *int) (bool, error)
	ReleaseToAvailable(tx *goqu.TxDatabase, equipmentID int, condition *string) error
}

// UserStore resolves team membership for on-behalf checkouts.
type UserStore interface {
	TeamMemberIDs(leaderID int) ([]int, error)
	IsTeamMember(leaderID, userID int) (bool, error)
}

type CheckoutService struct {
	repo      CheckoutRepository
	equipment EquipmentStore
	users     UserStore
	publisher events.Publisher
	auditLog  *auditlog.Auditlog
	log       *zap.Logger
}

func NewCheckoutService(
	repo CheckoutRepository,
	equipment EquipmentStore,
	users UserStore,
	publisher events.Publisher,
	auditLog *auditlog.Auditlog,
	log *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		repo:      repo,
		equipment: equipment,
		users:     users,
		publisher: publisher,
		auditLog:  auditLog,
		log:       log,
	}
}

type CheckoutRequest struct {
	EquipmentID      int        `json:"equipment_id" binding:"required"`
	UserID           *int       `json:"user_id"`
	LocationID       *int       `json:"location_id"`
	ExpectedReturnAt *time.Time `json:"expected_return_at"`
	Condition        *string    `json:"condition"`
	PhotoURL         *string    `json:"photo_url"`
	Notes            *string    `json:"notes"`
	GPSLat           *float64   `json:"gps_lat"`
	GPSLng           *float64   `json:"gps_lng"`
}

// Checkout claims an available unit for a user and opens a session. A unit
// that is already out is rejected up front; the claim itself is a
// conditional update on the registry, so two concurrent checkouts of the
// same unit still resolve to one winner.
func (s *CheckoutService) Checkout(actorID int, forTeam bool, payload CheckoutRequest) (*models.Checkout, error) {
	targetID := actorID
	if payload.UserID != nil {
		targetID = *payload.UserID
	}
	if targetID != actorID {
		if !forTeam {
			return nil, custom_error.Forbidden("you may only check out equipment for yourself")
		}
		member, err := s.users.IsTeamMember(actorID, targetID)
		if err != nil {
			return nil, fmt.Errorf("failed to check team membership: %w", err)
		}
		if !member {
			return nil, custom_error.Forbidden("user %d is not in your team", targetID)
		}
	}

	if payload.ExpectedReturnAt != nil && payload.ExpectedReturnAt.Before(time.Now()) {
		return nil, custom_error.Validation("expected_return_at must be in the future")
	}

	equipment, err := s.equipment.GetEquipment(payload.EquipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch equipment: %w", err)
	}
	if equipment == nil {
		return nil, custom_error.NotFound("equipment %d not found", payload.EquipmentID)
	}
	if equipment.Status != metadata.EquipmentAvailable {
		active, err := s.repo.GetActiveCheckoutForEquipment(payload.EquipmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch active checkout: %w", err)
		}
		if active != nil {
			return nil, custom_error.InvalidState("equipment %d is %s, checked out to user %d", payload.EquipmentID, equipment.Status, active.UserID)
		}
		return nil, custom_error.InvalidState("equipment %d is %s", payload.EquipmentID, equipment.Status)
	}

	now := time.Now()
	checkout := &models.Checkout{
		EquipmentID:       payload.EquipmentID,
		UserID:            targetID,
		LocationID:        payload.LocationID,
		CheckoutAt:        now,
		ExpectedReturnAt:  payload.ExpectedReturnAt,
		CheckoutCondition: payload.Condition,
		CheckoutPhotoURL:  payload.PhotoURL,
		CheckoutNotes:     payload.Notes,
		CheckoutGPSLat:    payload.GPSLat,
		CheckoutGPSLng:    payload.GPSLng,
		CheckedOutBy:      &actorID,
		Status:            metadata.CheckoutActive,
	}

	var checkoutID int
	err = s.repo.InTransaction(func(tx *goqu.TxDatabase) error {
		claimed, err := s.equipment.ClaimForCheckout(tx, payload.EquipmentID, targetID, payload.LocationID)
		if err != nil {
			return err
		}
		if !claimed {
			return custom_error.Conflict("equipment %d is not available", payload.EquipmentID)
		}

		checkoutID, err = s.repo.InsertCheckout(tx, checkout)
		return err
	})
	if err != nil {
		return nil, err
	}
	checkout.ID = checkoutID

	s.log.Info("equipment checked out",
		zap.Int("checkoutID", checkoutID),
		zap.Int("equipmentID", payload.EquipmentID),
		zap.Int("userID", targetID),
	)
	s.auditLog.LogAs(actorID, "checkout", map[string]interface{}{"user_id": targetID}, checkout)
	s.publisher.Publish(events.TopicCheckouts, events.CheckoutCreated, checkoutID, checkout)

	return s.repo.GetCheckout(checkoutID)
}

type ReturnRequest struct {
	Condition *string  `json:"condition"`
	PhotoURL  *string  `json:"photo_url"`
	Notes     *string  `json:"notes"`
	GPSLat    *float64 `json:"gps_lat"`
	GPSLng    *float64 `json:"gps_lng"`
}

// Return closes an active session and releases the unit back to available
// at its home location. The close is conditional on active, so a double
// return reports a conflict instead of releasing twice.
func (s *CheckoutService) Return(checkoutID int, actorID int, forTeam bool, payload ReturnRequest) (*models.Checkout, error) {
	checkout, err := s.repo.GetCheckout(checkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkout: %w", err)
	}
	if checkout == nil {
		return nil, custom_error.NotFound("checkout %d not found", checkoutID)
	}
	if checkout.Status != metadata.CheckoutActive {
		return nil, custom_error.InvalidState("checkout %d is already returned", checkoutID)
	}

	if err := s.authorizeActor(checkout.UserID, actorID, forTeam); err != nil {
		return nil, err
	}

	evidence := models.Evidence{
		Condition: payload.Condition,
		PhotoURL:  payload.PhotoURL,
		Notes:     payload.Notes,
		GPSLat:    payload.GPSLat,
		GPSLng:    payload.GPSLng,
	}

	now := time.Now()
	err = s.repo.InTransaction(func(tx *goqu.TxDatabase) error {
		closed, err := s.repo.CloseCheckout(tx, checkoutID, actorID, evidence, now)
		if err != nil {
			return err
		}
		if !closed {
			return custom_error.Conflict("checkout %d is no longer active", checkoutID)
		}

		return s.equipment.ReleaseToAvailable(tx, checkout.EquipmentID, payload.Condition)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("equipment returned",
		zap.Int("checkoutID", checkoutID),
		zap.Int("equipmentID", checkout.EquipmentID),
	)
	s.auditLog.LogAs(actorID, "return", payload, checkout)
	s.publisher.Publish(events.TopicCheckouts, events.CheckoutReturned, checkoutID, nil)

	return s.repo.GetCheckout(checkoutID)
}

type ExtendRequest struct {
	ExpectedReturnAt time.Time `json:"expected_return_at" binding:"required"`
}

// Extend pushes the expected return date of an active session forward.
func (s *CheckoutService) Extend(checkoutID int, actorID int, forTeam bool, payload ExtendRequest) (*models.Checkout, error) {
	if payload.ExpectedReturnAt.Before(time.Now()) {
		return nil, custom_error.Validation("expected_return_at must be in the future")
	}

	checkout, err := s.repo.GetCheckout(checkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkout: %w", err)
	}
	if checkout == nil {
		return nil, custom_error.NotFound("checkout %d not found", checkoutID)
	}
	if checkout.Status != metadata.CheckoutActive {
		return nil, custom_error.InvalidState("checkout %d is already returned", checkoutID)
	}

	if err := s.authorizeActor(checkout.UserID, actorID, forTeam); err != nil {
		return nil, err
	}

	extended, err := s.repo.ExtendCheckout(checkoutID, payload.ExpectedReturnAt)
	if err != nil {
		return nil, err
	}
	if !extended {
		return nil, custom_error.Conflict("checkout %d is no longer active", checkoutID)
	}

	s.auditLog.LogAs(actorID, "extend", payload, checkout)
	s.publisher.Publish(events.TopicCheckouts, events.CheckoutExtended, checkoutID, nil)

	return s.repo.GetCheckout(checkoutID)
}

func (s *CheckoutService) authorizeActor(ownerID int, actorID int, forTeam bool) error {
	if ownerID == actorID {
		return nil
	}
	if !forTeam {
		return custom_error.Forbidden("checkout belongs to another user")
	}
	member, err := s.users.IsTeamMember(actorID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to check team membership: %w", err)
	}
	if !member {
		return custom_error.Forbidden("checkout belongs to a user outside your team")
	}
	return nil
}

// ListScope selects whose checkouts a listing covers.
type ListScope int

const (
	ScopeSelf ListScope = iota
	ScopeTeam
	ScopeAll
)

// List returns checkouts visible to the caller under the given scope.
func (s *CheckoutService) List(callerID int, scope ListScope, filter ListFilter) ([]models.Checkout, error) {
	switch scope {
	case ScopeSelf:
		filter.UserIDs = []int{callerID}
	case ScopeTeam:
		teamIDs, err := s.users.TeamMemberIDs(callerID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve team: %w", err)
		}
		filter.UserIDs = teamIDs
	case ScopeAll:
		// filter.UserIDs stays as the caller provided it
	}

	return s.repo.ListCheckouts(filter)
}

// GetCheckout returns one session, visible to its user or a leader of
// their team.
func (s *CheckoutService) GetCheckout(checkoutID int, actorID int, forTeam bool) (*models.Checkout, error) {
	checkout, err := s.repo.GetCheckout(checkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkout: %w", err)
	}
	if checkout == nil {
		return nil, custom_error.NotFound("checkout %d not found", checkoutID)
	}
	if err := s.authorizeActor(checkout.UserID, actorID, forTeam); err != nil {
		return nil, err
	}
	return checkout, nil
}
