package equipment

import (
	"fmt"

	"github.com/cpusmsng/vercajch/internal/repository"
	"github.com/cpusmsng/vercajch/pkg/metadata"
	"github.com/cpusmsng/vercajch/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

// EquipmentRepository is the registry's only mutation surface for custody
// fields. Both custody engines (checkouts and transfers) go through the
// conditional updates here, so a unit can never end up with two holders.
type EquipmentRepository struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) *EquipmentRepository {
	return &EquipmentRepository{repository: r}
}

var equipmentColumns = []interface{}{
	"id", "name", "serial_number", "category_id", "status", "condition",
	"current_holder_id", "current_location_id", "home_location_id",
	"is_transferable", "transfer_requires_approval", "created_at", "updated_at",
}

func (r *EquipmentRepository) GetEquipment(equipmentID int) (*models.Equipment, error) {
	var eq models.Equipment

	query := r.repository.GoquDBWrapper.
		Select(equipmentColumns...).
		From("equipment").
		Where(goqu.Ex{"id": equipmentID})

	found, err := query.Executor().ScanStruct(&eq)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &eq, nil
}

func (r *EquipmentRepository) GetEquipmentBy(conditions repository.QueryBuilder) (*[]models.Equipment, error) {
	var items []models.Equipment

	query := r.repository.GoquDBWrapper.
		Select(equipmentColumns...).
		From("equipment")

	aliases := map[string]string{
		"status":            "status",
		"category_id":       "category_id",
		"current_holder_id": "current_holder_id",
	}
	query = query.Where(conditions.BuildConditions(aliases)).Order(goqu.I("name").Asc())

	if err := query.Executor().ScanStructs(&items); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return &items, nil
}

// HeldEquipmentIDs lists every unit a user currently holds.
func (r *EquipmentRepository) HeldEquipmentIDs(userID int) ([]int, error) {
	var ids []int

	query := r.repository.GoquDBWrapper.
		Select("id").
		From("equipment").
		Where(goqu.Ex{"current_holder_id": userID})

	if err := query.Executor().ScanVals(&ids); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return ids, nil
}

// RequiresApproval resolves the approval gate for a unit: the unit's own
// flag wins; a null flag falls back to the category setting.
func (r *EquipmentRepository) RequiresApproval(equipmentID int) (bool, error) {
	var required bool

	query := r.repository.GoquDBWrapper.
		From(goqu.T("equipment").As("e")).
		LeftJoin(
			goqu.T("categories").As("c"),
			goqu.On(goqu.Ex{"e.category_id": goqu.I("c.id")}),
		).
		Select(goqu.L("COALESCE(e.transfer_requires_approval, c.transfer_requires_approval, FALSE)")).
		Where(goqu.Ex{"e.id": equipmentID})

	if _, err := query.Executor().ScanVal(&required); err != nil {
		return false, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return required, nil
}

// ClaimForCheckout atomically moves an available unit into checked_out
// custody. Returns false when the unit was not available, which is how
// concurrent checkouts lose the race.
func (r *EquipmentRepository) ClaimForCheckout(tx *goqu.TxDatabase, equipmentID int, holderID int, locationID *int) (bool, error) {
	record := goqu.Record{
		"status":            string(metadata.EquipmentCheckedOut),
		"current_holder_id": holderID,
		"updated_at":        goqu.L("NOW()"),
	}
	if locationID != nil {
		record["current_location_id"] = *locationID
	}

	result, err := tx.Update("equipment").
		Set(record).
		Where(goqu.Ex{
			"id":     equipmentID,
			"status": string(metadata.EquipmentAvailable),
		}).
		Executor().
		Exec()
	if err != nil {
		return false, fmt.Errorf("failed to claim equipment %d: %w", equipmentID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ReleaseToAvailable resets custody after a return: no holder, available,
// back at its home location when one is configured.
func (r *EquipmentRepository) ReleaseToAvailable(tx *goqu.TxDatabase, equipmentID int, condition *string) error {
	record := goqu.Record{
		"status":              string(metadata.EquipmentAvailable),
		"current_holder_id":   nil,
		"current_location_id": goqu.L("COALESCE(home_location_id, current_location_id)"),
		"updated_at":          goqu.L("NOW()"),
	}
	if condition != nil {
		record["condition"] = *condition
	}

	_, err := tx.Update("equipment").
		Set(record).
		Where(goqu.Ex{"id": equipmentID}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to release equipment %d: %w", equipmentID, err)
	}

	return nil
}

// AssignHolder moves custody to a new holder once a handover is fully
// confirmed. The unit stays checked_out; only the holder pointer changes.
func (r *EquipmentRepository) AssignHolder(tx *goqu.TxDatabase, equipmentID int, holderID int) error {
	_, err := tx.Update("equipment").
		Set(goqu.Record{
			"status":            string(metadata.EquipmentCheckedOut),
			"current_holder_id": holderID,
			"updated_at":        goqu.L("NOW()"),
		}).
		Where(goqu.Ex{"id": equipmentID}).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to assign holder for equipment %d: %w", equipmentID, err)
	}

	return nil
}
