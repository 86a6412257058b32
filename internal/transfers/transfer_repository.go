package transfers

import (
	"fmt"
	"time"

	"github.com/cpusmsng/vercajch/internal/repository"
	custom_error "github.com/cpusmsng/vercajch/pkg/errors"
	"github.com/cpusmsng/vercajch/pkg/metadata"
	"github.com/cpusmsng/vercajch/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

// TransferRepository covers requests, offers and the custody ledger. State
// transitions are conditional updates: the caller learns from the returned
// bool whether it won the transition, and a lost race never mutates rows.
type TransferRepository interface {
	InTransaction(fn func(tx *goqu.TxDatabase) error) error

	InsertRequest(req *models.TransferRequest) (int, error)
	GetRequest(requestID int) (*models.TransferRequest, error)
	HasPendingRequest(equipmentID int, requesterID int) (bool, error)
	TransitionRequest(tx *goqu.TxDatabase, requestID int, from []metadata.RequestStatus, to metadata.RequestStatus, extra goqu.Record) (bool, error)
	GetRequestsByRequester(requesterID int, status string) ([]models.TransferRequest, error)
	GetPendingRequestsForEquipment(equipmentIDs []int) ([]models.TransferRequest, error)
	GetOpenBroadcastRequests(excludeRequesterID int) ([]models.TransferRequest, error)
	GetRequestsAwaitingApproval(userIDs []int) ([]models.TransferRequest, error)
	ExpirePendingRequests(now time.Time) ([]int, error)

	InsertOffer(offer *models.TransferOffer) (int, error)
	GetOffer(offerID int) (*models.TransferOffer, error)
	GetOffersByRequest(requestID int) ([]models.TransferOffer, error)
	AcceptOffer(tx *goqu.TxDatabase, offerID int) (bool, error)
	RejectSiblingOffers(tx *goqu.TxDatabase, requestID int, acceptedOfferID int) error

	InsertTransfer(tx *goqu.TxDatabase, transfer *models.Transfer) (int, error)
	GetTransfer(transferID int) (*models.Transfer, error)
	GetTransferTx(tx *goqu.TxDatabase, transferID int) (*models.Transfer, error)
	StampHandover(tx *goqu.TxDatabase, transferID int, evidence models.Evidence, at time.Time) (bool, error)
	StampReceipt(tx *goqu.TxDatabase, transferID int, evidence models.Evidence, at time.Time) (bool, error)
	GetTransferHistory(userID int, equipmentID *int) ([]models.Transfer, error)
}

type transferRepository struct {
	Repo *repository.Repository
}

func NewRepository(r *repository.Repository) TransferRepository {
	return &transferRepository{Repo: r}
}

func (r *transferRepository) InTransaction(fn func(tx *goqu.TxDatabase) error) error {
	return repository.WithTransaction(r.Repo.GoquDBWrapper, fn)
}

var requestColumns = []interface{}{
	"id", "request_type", "equipment_id", "category_id", "requester_id",
	"holder_id", "location_id", "location_note", "needed_from", "needed_until",
	"message", "status", "requires_leader_approval", "approved_by",
	"approved_at", "rejection_reason", "responded_at", "completed_at",
	"expires_at", "created_at", "updated_at",
}

func (r *transferRepository) InsertRequest(req *models.TransferRequest) (int, error) {
	query := r.Repo.GoquDBWrapper.Insert("transfer_requests").
		Rows(goqu.Record{
			"request_type":             string(req.RequestType),
			"equipment_id":             req.EquipmentID,
			"category_id":              req.CategoryID,
			"requester_id":             req.RequesterID,
			"holder_id":                req.HolderID,
			"location_id":              req.LocationID,
			"location_note":            req.LocationNote,
			"needed_from":              req.NeededFrom,
			"needed_until":             req.NeededUntil,
			"message":                  req.Message,
			"status":                   string(req.Status),
			"requires_leader_approval": req.RequiresLeaderApproval,
			"expires_at":               req.ExpiresAt,
		}).
		Returning("id")

	var requestID int
	if _, err := query.Executor().ScanVal(&requestID); err != nil {
		return 0, custom_error.FromPQ(fmt.Errorf("failed to insert transfer request: %w", err))
	}

	return requestID, nil
}

func (r *transferRepository) GetRequest(requestID int) (*models.TransferRequest, error) {
	var req models.TransferRequest

	query := r.Repo.GoquDBWrapper.
		Select(requestColumns...).
		From("transfer_requests").
		Where(goqu.Ex{"id": requestID})

	found, err := query.Executor().ScanStruct(&req)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &req, nil
}

func (r *transferRepository) HasPendingRequest(equipmentID int, requesterID int) (bool, error) {
	var count int

	query := r.Repo.GoquDBWrapper.
		From("transfer_requests").
		Select(goqu.COUNT("id")).
		Where(goqu.Ex{
			"equipment_id": equipmentID,
			"requester_id": requesterID,
			"status":       string(metadata.RequestPending),
		})

	if _, err := query.Executor().ScanVal(&count); err != nil {
		return false, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return count > 0, nil
}

// TransitionRequest is the single write path for request status changes.
// The WHERE clause on the current status makes concurrent transitions
// mutually exclusive; exactly one caller observes true.
func (r *transferRepository) TransitionRequest(tx *goqu.TxDatabase, requestID int, from []metadata.RequestStatus, to metadata.RequestStatus, extra goqu.Record) (bool, error) {
	fromValues := transitionSources(from, to)
	if len(fromValues) == 0 {
		return false, nil
	}

	record := goqu.Record{
		"status":     string(to),
		"updated_at": goqu.L("NOW()"),
	}
	for key, value := range extra {
		record[key] = value
	}

	result, err := tx.Update("transfer_requests").
		Set(record).
		Where(goqu.Ex{"id": requestID}).
		Where(goqu.C("status").In(fromValues)).
		Executor().
		Exec()
	if err != nil {
		return false, fmt.Errorf("failed to transition request %d to %s: %w", requestID, to, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *transferRepository) GetRequestsByRequester(requesterID int, status string) ([]models.TransferRequest, error) {
	var requests []models.TransferRequest

	query := r.Repo.GoquDBWrapper.
		Select(requestColumns...).
		From("transfer_requests").
		Where(goqu.Ex{"requester_id": requesterID})

	if status != "" {
		query = query.Where(goqu.Ex{"status": status})
	}

	query = query.Order(goqu.I("created_at").Desc())

	if err := query.Executor().ScanStructs(&requests); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return requests, nil
}

func (r *transferRepository) GetPendingRequestsForEquipment(equipmentIDs []int) ([]models.TransferRequest, error) {
	if len(equipmentIDs) == 0 {
		return nil, nil
	}

	var requests []models.TransferRequest

	query := r.Repo.GoquDBWrapper.
		Select(requestColumns...).
		From("transfer_requests").
		Where(
			goqu.C("equipment_id").In(equipmentIDs),
			goqu.C("status").Eq(string(metadata.RequestPending)),
		).
		Order(goqu.I("created_at").Desc())

	if err := query.Executor().ScanStructs(&requests); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return requests, nil
}

func (r *transferRepository) GetOpenBroadcastRequests(excludeRequesterID int) ([]models.TransferRequest, error) {
	var requests []models.TransferRequest

	query := r.Repo.GoquDBWrapper.
		Select(requestColumns...).
		From("transfer_requests").
		Where(
			goqu.C("request_type").Eq(string(metadata.RequestBroadcast)),
			goqu.C("status").Eq(string(metadata.RequestPending)),
			goqu.C("requester_id").Neq(excludeRequesterID),
		).
		Order(goqu.I("created_at").Desc())

	if err := query.Executor().ScanStructs(&requests); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return requests, nil
}

func (r *transferRepository) GetRequestsAwaitingApproval(userIDs []int) ([]models.TransferRequest, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var requests []models.TransferRequest

	query := r.Repo.GoquDBWrapper.
		Select(requestColumns...).
		From("transfer_requests").
		Where(goqu.C("status").Eq(string(metadata.RequestRequiresApproval))).
		Where(goqu.Or(
			goqu.C("requester_id").In(userIDs),
			goqu.C("holder_id").In(userIDs),
		)).
		Order(goqu.I("created_at").Desc())

	if err := query.Executor().ScanStructs(&requests); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return requests, nil
}

// ExpirePendingRequests transitions every overdue pending request to
// expired and returns their IDs for event publishing.
func (r *transferRepository) ExpirePendingRequests(now time.Time) ([]int, error) {
	var ids []int

	query := r.Repo.GoquDBWrapper.Update("transfer_requests").
		Set(goqu.Record{
			"status":     string(metadata.RequestExpired),
			"updated_at": goqu.L("NOW()"),
		}).
		Where(
			goqu.C("status").Eq(string(metadata.RequestPending)),
			goqu.C("expires_at").IsNotNull(),
			goqu.C("expires_at").Lt(now),
		).
		Returning("id")

	if err := query.Executor().ScanVals(&ids); err != nil {
		return nil, fmt.Errorf("failed to expire requests: %w", err)
	}

	return ids, nil
}

var offerColumns = []interface{}{
	"id", "request_id", "offerer_id", "equipment_id", "message", "status", "created_at",
}

func (r *transferRepository) InsertOffer(offer *models.TransferOffer) (int, error) {
	query := r.Repo.GoquDBWrapper.Insert("transfer_offers").
		Rows(goqu.Record{
			"request_id":   offer.RequestID,
			"offerer_id":   offer.OffererID,
			"equipment_id": offer.EquipmentID,
			"message":      offer.Message,
			"status":       string(metadata.OfferPending),
		}).
		Returning("id")

	var offerID int
	if _, err := query.Executor().ScanVal(&offerID); err != nil {
		return 0, custom_error.FromPQ(fmt.Errorf("failed to insert transfer offer: %w", err))
	}

	return offerID, nil
}

func (r *transferRepository) GetOffer(offerID int) (*models.TransferOffer, error) {
	var offer models.TransferOffer

	query := r.Repo.GoquDBWrapper.
		Select(offerColumns...).
		From("transfer_offers").
		Where(goqu.Ex{"id": offerID})

	found, err := query.Executor().ScanStruct(&offer)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &offer, nil
}

func (r *transferRepository) GetOffersByRequest(requestID int) ([]models.TransferOffer, error) {
	var offers []models.TransferOffer

	query := r.Repo.GoquDBWrapper.
		Select(offerColumns...).
		From("transfer_offers").
		Where(goqu.Ex{"request_id": requestID}).
		Order(goqu.I("created_at").Asc())

	if err := query.Executor().ScanStructs(&offers); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return offers, nil
}

// AcceptOffer marks one offer as the winner. Conditional on pending so two
// racing accepts cannot both win.
func (r *transferRepository) AcceptOffer(tx *goqu.TxDatabase, offerID int) (bool, error) {
	result, err := tx.Update("transfer_offers").
		Set(goqu.Record{"status": string(metadata.OfferAccepted)}).
		Where(goqu.Ex{
			"id":     offerID,
			"status": string(metadata.OfferPending),
		}).
		Executor().
		Exec()
	if err != nil {
		return false, fmt.Errorf("failed to accept offer %d: %w", offerID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *transferRepository) RejectSiblingOffers(tx *goqu.TxDatabase, requestID int, acceptedOfferID int) error {
	_, err := tx.Update("transfer_offers").
		Set(goqu.Record{"status": string(metadata.OfferRejected)}).
		Where(
			goqu.C("request_id").Eq(requestID),
			goqu.C("id").Neq(acceptedOfferID),
			goqu.C("status").Eq(string(metadata.OfferPending)),
		).
		Executor().
		Exec()
	if err != nil {
		return fmt.Errorf("failed to reject sibling offers for request %d: %w", requestID, err)
	}

	return nil
}

var transferColumns = []interface{}{
	"id", "equipment_id", "request_id", "from_user_id", "to_user_id",
	"location_id", "gps_lat", "gps_lng", "transfer_type", "from_confirmed_at",
	"to_confirmed_at", "condition_at_transfer", "photo_url", "notes", "created_at",
}

func (r *transferRepository) InsertTransfer(tx *goqu.TxDatabase, transfer *models.Transfer) (int, error) {
	query := tx.Insert("transfers").
		Rows(goqu.Record{
			"equipment_id":  transfer.EquipmentID,
			"request_id":    transfer.RequestID,
			"from_user_id":  transfer.FromUserID,
			"to_user_id":    transfer.ToUserID,
			"location_id":   transfer.LocationID,
			"transfer_type": string(transfer.TransferType),
		}).
		Returning("id")

	var transferID int
	if _, err := query.Executor().ScanVal(&transferID); err != nil {
		return 0, fmt.Errorf("failed to insert transfer record: %w", err)
	}

	return transferID, nil
}

func (r *transferRepository) GetTransfer(transferID int) (*models.Transfer, error) {
	return scanTransfer(r.Repo.GoquDBWrapper.
		Select(transferColumns...).
		From("transfers").
		Where(goqu.Ex{"id": transferID}))
}

func (r *transferRepository) GetTransferTx(tx *goqu.TxDatabase, transferID int) (*models.Transfer, error) {
	return scanTransfer(tx.
		Select(transferColumns...).
		From("transfers").
		Where(goqu.Ex{"id": transferID}))
}

func scanTransfer(query *goqu.SelectDataset) (*models.Transfer, error) {
	var transfer models.Transfer

	found, err := query.Executor().ScanStruct(&transfer)
	if err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &transfer, nil
}

// StampHandover records the giver's confirmation and evidence. Conditional
// on the timestamp still being null; a repeat call is a no-op.
func (r *transferRepository) StampHandover(tx *goqu.TxDatabase, transferID int, evidence models.Evidence, at time.Time) (bool, error) {
	record := goqu.Record{"from_confirmed_at": at}
	addEvidence(record, evidence)

	return stampConfirmation(tx, transferID, "from_confirmed_at", record)
}

// StampReceipt records the receiver's confirmation.
func (r *transferRepository) StampReceipt(tx *goqu.TxDatabase, transferID int, evidence models.Evidence, at time.Time) (bool, error) {
	record := goqu.Record{"to_confirmed_at": at}
	addEvidence(record, evidence)

	return stampConfirmation(tx, transferID, "to_confirmed_at", record)
}

func addEvidence(record goqu.Record, evidence models.Evidence) {
	if evidence.Condition != nil {
		record["condition_at_transfer"] = *evidence.Condition
	}
	if evidence.PhotoURL != nil {
		record["photo_url"] = *evidence.PhotoURL
	}
	if evidence.Notes != nil {
		record["notes"] = *evidence.Notes
	}
	if evidence.GPSLat != nil {
		record["gps_lat"] = *evidence.GPSLat
		record["gps_lng"] = evidence.GPSLng
	}
}

func stampConfirmation(tx *goqu.TxDatabase, transferID int, column string, record goqu.Record) (bool, error) {
	result, err := tx.Update("transfers").
		Set(record).
		Where(
			goqu.C("id").Eq(transferID),
			goqu.C(column).IsNull(),
		).
		Executor().
		Exec()
	if err != nil {
		return false, fmt.Errorf("failed to stamp confirmation on transfer %d: %w", transferID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *transferRepository) GetTransferHistory(userID int, equipmentID *int) ([]models.Transfer, error) {
	var transfers []models.Transfer

	query := r.Repo.GoquDBWrapper.
		Select(transferColumns...).
		From("transfers").
		Where(goqu.Or(
			goqu.C("from_user_id").Eq(userID),
			goqu.C("to_user_id").Eq(userID),
		))

	if equipmentID != nil {
		query = query.Where(goqu.C("equipment_id").Eq(*equipmentID))
	}

	query = query.Order(goqu.I("created_at").Desc())

	if err := query.Executor().ScanStructs(&transfers); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	return transfers, nil
}
