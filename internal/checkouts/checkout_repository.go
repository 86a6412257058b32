package checkouts

import (
	"fmt"
	"time"

	"github.com/cpusmsng/vercajch/internal/repository"
	custom_error "github.com/cpusmsng/vercajch/pkg/errors"
	"github.com/cpusmsng/vercajch/pkg/metadata"
	"github.com/cpusmsng/vercajch/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

// CheckoutRepository persists checkout sessions. Closing a session is a
// conditional update on active, so a double return loses the race cleanly.
type CheckoutRepository interface {
	InTransaction(fn func(tx *goqu.TxDatabase) error) error

	InsertCheckout(tx *goqu.TxDatabase, checkout *models.Checkout) (int, error)
	GetCheckout(checkoutID int) (*models.Checkout, error)
	GetActiveCheckoutForEquipment(equipmentID int) (*models.Checkout, error)
	CloseCheckout(tx *goqu.TxDatabase, checkoutID int, returnedBy int, evidence models.Evidence, at time.Time) (bool, error)
	ExtendCheckout(checkoutID int, until time.Time) (bool, error)
	ListCheckouts(filter ListFilter) ([]models.Checkout, error)
}

// ListFilter narrows the checkout listing. Overdue is derived from the
// expected return date at query time.
type ListFilter struct {
	UserIDs     []int
	EquipmentID *int
	Status      string
	OverdueOnly bool
}

type checkoutRepository struct {
	Repo *repository.Repository
}

func NewRepository(r *repository.Repository) CheckoutRepository {
	return &checkoutRepository{Repo: r}
}

func (r *checkoutRepository) InTransaction(fn func(tx *goqu.TxDatabase) error) error {
	return repository.WithTransaction(r.Repo.GoquDBWrapper, fn)
}

var checkoutColumns = []interface{}{
	"id", "equipment_id", "user_id", "location_id", "checkout_at",
	"expected_return_at", "actual_return_at", "checkout_condition",
	"checkout_photo_url", "checkout_notes", "checkout_gps_lat",
	"checkout_gps_lng", "return_condition", "return_photo_url",
	"return_notes", "return_gps_lat", "return_gps_lng", "checked_out_by",
	"checked_in_by", "status", "created_at",
}

func (r *checkoutRepository) InsertCheckout(tx *goqu.TxDatabase, checkout *models.Checkout) (int, error) {
	query := tx.Insert("checkouts").
		Rows(goqu.Record{
			"equipment_id":       checkout.EquipmentID,
			"user_id":            checkout.UserID,
			"location_id":        checkout.LocationID,
			"checkout_at":        checkout.CheckoutAt,
			"expected_return_at": checkout.ExpectedReturnAt,
			"checkout_condition": checkout.CheckoutCondition,
			"checkout_photo_url": checkout.CheckoutPhotoURL,
			"checkout_notes":     checkout.CheckoutNotes,
			"checkout_gps_lat":   checkout.CheckoutGPSLat,
			"checkout_gps_lng":   checkout.CheckoutGPSLng,
			"checked_out_by":     checkout.CheckedOutBy,
			"status":             string(metadata.CheckoutActive),
		}).
		Returning("id")

	var checkoutID int
	if _, err := query.Executor().ScanVal(&checkoutID); err != nil {
		// The partial unique index on active checkouts backstops the
		// conditional equipment claim.
		return 0, custom_error.FromPQ(fmt.Errorf("failed to insert checkout: %w", err))
	}

	return checkoutID, nil
}

func (r *checkoutRepository) GetCheckout(checkoutID int) (*models.Checkout, error) {
	var checkout models.Checkout

	query := r.Repo.GoquDBWrapper.
		Select(checkoutColumns...).
		From("checkouts").
		Where(goqu.Ex{"id": checkoutID})

	found, err := query.Executor().ScanStruct(&checkout)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &checkout, nil
}

func (r *checkoutRepository) GetActiveCheckoutForEquipment(equipmentID int) (*models.Checkout, error) {
	var checkout models.Checkout

	query := r.Repo.GoquDBWrapper.
		Select(checkoutColumns...).
		From("checkouts").
		Where(goqu.Ex{
			"equipment_id": equipmentID,
			"status":       string(metadata.CheckoutActive),
		})

	found, err := query.Executor().ScanStruct(&checkout)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &checkout, nil
}

func (r *checkoutRepository) CloseCheckout(tx *goqu.TxDatabase, checkoutID int, returnedBy int, evidence models.Evidence, at time.Time) (bool, error) {
	record := goqu.Record{
		"status":           string(metadata.CheckoutReturned),
		"actual_return_at": at,
		"checked_in_by":    returnedBy,
	}
	if evidence.Condition != nil {
		record["return_condition"] = *evidence.Condition
	}
	if evidence.PhotoURL != nil {
		record["return_photo_url"] = *evidence.PhotoURL
	}
	if evidence.Notes != nil {
		record["return_notes"] = *evidence.Notes
	}
	if evidence.GPSLat != nil {
		record["return_gps_lat"] = *evidence.GPSLat
		record["return_gps_lng"] = evidence.GPSLng
	}

	result, err := tx.Update("checkouts").
		Set(record).
		Where(goqu.Ex{
			"id":     checkoutID,
			"status": string(metadata.CheckoutActive),
		}).
		Executor().
		Exec()
	if err != nil {
		return false, fmt.Errorf("failed to close checkout %d: %w", checkoutID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *checkoutRepository) ExtendCheckout(checkoutID int, until time.Time) (bool, error) {
	result, err := r.Repo.GoquDBWrapper.Update("checkouts").
		Set(goqu.Record{"expected_return_at": until}).
		Where(goqu.Ex{
			"id":     checkoutID,
			"status": string(metadata.CheckoutActive),
		}).
		Executor().
		Exec()
	if err != nil {
		return false, fmt.Errorf("failed to extend checkout %d: %w", checkoutID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *checkoutRepository) ListCheckouts(filter ListFilter) ([]models.Checkout, error) {
	var checkouts []models.Checkout

	query := r.Repo.GoquDBWrapper.
		Select(checkoutColumns...).
		From("checkouts")

	if len(filter.UserIDs) > 0 {
		query = query.Where(goqu.C("user_id").In(filter.UserIDs))
	}
	if filter.EquipmentID != nil {
		query = query.Where(goqu.C("equipment_id").Eq(*filter.EquipmentID))
	}
	if filter.Status != "" {
		query = query.Where(goqu.C("status").Eq(filter.Status))
	}
	if filter.OverdueOnly {
		query = query.Where(
			goqu.C("status").Eq(string(metadata.CheckoutActive)),
			goqu.C("expected_return_at").IsNotNull(),
			goqu.C("expected_return_at").Lt(goqu.L("NOW()")),
		)
	}

	query = query.Order(goqu.I("checkout_at").Desc())

	if err := query.Executor().ScanStructs(&checkouts); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return checkouts, nil
}
