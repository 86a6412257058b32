package transfers

import (
	"errors"
	"testing"
	"time"

	"github.com/cpusmsng/vercajch/internal/events"
	"github.com/cpusmsng/vercajch/pkg/auditlog"
	custom_error "github.com/cpusmsng/vercajch/pkg/errors"
	"github.com/cpusmsng/vercajch/pkg/metadata"
	"github.com/cpusmsng/vercajch/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) InTransaction(fn func(tx *goqu.TxDatabase) error) error {
	return fn(nil)
}

func (m *MockTransferRepository) InsertRequest(req *models.TransferRequest) (int, error) {
	args := m.Called(req)
	return args.Int(0), args.Error(1)
}

func (m *MockTransferRepository) GetRequest(requestID int) (*models.TransferRequest, error) {
	args := m.Called(requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransferRequest), args.Error(1)
}

func (m *MockTransferRepository) HasPendingRequest(equipmentID int, requesterID int) (bool, error) {
	args := m.Called(equipmentID, requesterID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransferRepository) TransitionRequest(tx *goqu.TxDatabase, requestID int, from []metadata.RequestStatus, to metadata.RequestStatus, extra goqu.Record) (bool, error) {
	args := m.Called(tx, requestID, from, to, extra)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransferRepository) GetRequestsByRequester(requesterID int, status string) ([]models.TransferRequest, error) {
	args := m.Called(requesterID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransferRequest), args.Error(1)
}

func (m *MockTransferRepository) GetPendingRequestsForEquipment(equipmentIDs []int) ([]models.TransferRequest, error) {
	args := m.Called(equipmentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransferRequest), args.Error(1)
}

func (m *MockTransferRepository) GetOpenBroadcastRequests(excludeRequesterID int) ([]models.TransferRequest, error) {
	args := m.Called(excludeRequesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransferRequest), args.Error(1)
}

func (m *MockTransferRepository) GetRequestsAwaitingApproval(userIDs []int) ([]models.TransferRequest, error) {
	args := m.Called(userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransferRequest), args.Error(1)
}

func (m *MockTransferRepository) ExpirePendingRequests(now time.Time) ([]int, error) {
	args := m.Called(now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockTransferRepository) InsertOffer(offer *models.TransferOffer) (int, error) {
	args := m.Called(offer)
	return args.Int(0), args.Error(1)
}

func (m *MockTransferRepository) GetOffer(offerID int) (*models.TransferOffer, error) {
	args := m.Called(offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransferOffer), args.Error(1)
}

func (m *MockTransferRepository) GetOffersByRequest(requestID int) ([]models.TransferOffer, error) {
	args := m.Called(requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TransferOffer), args.Error(1)
}

func (m *MockTransferRepository) AcceptOffer(tx *goqu.TxDatabase, offerID int) (bool, error) {
	args := m.Called(tx, offerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransferRepository) RejectSiblingOffers(tx *goqu.TxDatabase, requestID int, acceptedOfferID int) error {
	args := m.Called(tx, requestID, acceptedOfferID)
	return args.Error(0)
}

func (m *MockTransferRepository) InsertTransfer(tx *goqu.TxDatabase, transfer *models.Transfer) (int, error) {
	args := m.Called(tx, transfer)
	return args.Int(0), args.Error(1)
}

func (m *MockTransferRepository) GetTransfer(transferID int) (*models.Transfer, error) {
	args := m.Called(transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transfer), args.Error(1)
}

func (m *MockTransferRepository) GetTransferTx(tx *goqu.TxDatabase, transferID int) (*models.Transfer, error) {
	args := m.Called(tx, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transfer), args.Error(1)
}

func (m *MockTransferRepository) StampHandover(tx *goqu.TxDatabase, transferID int, evidence models.Evidence, at time.Time) (bool, error) {
	args := m.Called(tx, transferID, evidence, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransferRepository) StampReceipt(tx *goqu.TxDatabase, transferID int, evidence models.Evidence, at time.Time) (bool, error) {
	args := m.Called(tx, transferID, evidence, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransferRepository) GetTransferHistory(userID int, equipmentID *int) ([]models.Transfer, error) {
	args := m.Called(userID, equipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transfer), args.Error(1)
}

type MockEquipmentStore struct {
	mock.Mock
}

func (m *MockEquipmentStore) GetEquipment(equipmentID int) (*models.Equipment, error) {
	args := m.Called(equipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Equipment), args.Error(1)
}

func (m *MockEquipmentStore) RequiresApproval(equipmentID int) (bool, error) {
	args := m.Called(equipmentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEquipmentStore) HeldEquipmentIDs(userID int) ([]int, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockEquipmentStore) AssignHolder(tx *goqu.TxDatabase, equipmentID int, holderID int) error {
	args := m.Called(tx, equipmentID, holderID)
	return args.Error(0)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) TeamMemberIDs(leaderID int) ([]int, error) {
	args := m.Called(leaderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockUserStore) IsTeamMember(leaderID, userID int) (bool, error) {
	args := m.Called(leaderID, userID)
	return args.Bool(0), args.Error(1)
}

type nopPersister struct{}

func (nopPersister) PersistLog(models.AuditLog, interface{}) error { return nil }

func newTestService(repo *MockTransferRepository, equipment *MockEquipmentStore, users *MockUserStore) *TransferService {
	return NewTransferService(repo, equipment, users, events.NopPublisher{}, auditlog.NewAuditLog(nopPersister{}), zap.NewNop())
}

func intPtr(v int) *int { return &v }

func TestCreateRequestDirect(t *testing.T) {
	repo := new(MockTransferRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	holderID := 7
	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:              10,
		Status:          metadata.EquipmentCheckedOut,
		CurrentHolderID: &holderID,
		IsTransferable:  true,
	}, nil)
	equipmentStore.On("RequiresApproval", 10).Return(false, nil)
	repo.On("HasPendingRequest", 10, 3).Return(false, nil)
	repo.On("InsertRequest", mock.MatchedBy(func(req *models.TransferRequest) bool {
		return req.RequestType == metadata.RequestDirect &&
			req.Status == metadata.RequestPending &&
			req.EquipmentID != nil && *req.EquipmentID == 10 &&
			req.HolderID != nil && *req.HolderID == holderID &&
			req.ExpiresAt != nil
	})).Return(42, nil)
	repo.On("GetRequest", 42).Return(&models.TransferRequest{ID: 42, Status: metadata.RequestPending}, nil)

	request, err := service.CreateRequest(3, CreateRequestRequest{
		RequestType: "direct",
		EquipmentID: intPtr(10),
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, request.ID)
	repo.AssertExpectations(t)
	equipmentStore.AssertExpectations(t)
}

func TestCreateRequestApprovalGate(t *testing.T) {
	repo := new(MockTransferRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	holderID := 7
	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:              10,
		CurrentHolderID: &holderID,
		IsTransferable:  true,
	}, nil)
	equipmentStore.On("RequiresApproval", 10).Return(true, nil)
	repo.On("HasPendingRequest", 10, 3).Return(false, nil)
	repo.On("InsertRequest", mock.MatchedBy(func(req *models.TransferRequest) bool {
		return req.Status == metadata.RequestRequiresApproval && req.RequiresLeaderApproval
	})).Return(42, nil)
	repo.On("GetRequest", 42).Return(&models.TransferRequest{ID: 42, Status: metadata.RequestRequiresApproval}, nil)

	request, err := service.CreateRequest(3, CreateRequestRequest{
		RequestType: "direct",
		EquipmentID: intPtr(10),
	})

	assert.NoError(t, err)
	assert.Equal(t, metadata.RequestRequiresApproval, request.Status)
}

func TestCreateRequestRejections(t *testing.T) {
	holderID := 3

	tests := []struct {
		name      string
		equipment *models.Equipment
		pending   bool
		kind      custom_error.Kind
	}{
		{
			name: "not transferable",
			equipment: &models.Equipment{
				ID:             10,
				IsTransferable: false,
			},
			kind: custom_error.KindInvalidState,
		},
		{
			name: "requester already holds the unit",
			equipment: &models.Equipment{
				ID:              10,
				CurrentHolderID: &holderID,
				IsTransferable:  true,
			},
			kind: custom_error.KindConflict,
		},
		{
			name: "duplicate pending request",
			equipment: &models.Equipment{
				ID:             10,
				IsTransferable: true,
			},
			pending: true,
			kind:    custom_error.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockTransferRepository)
			equipmentStore := new(MockEquipmentStore)
			service := newTestService(repo, equipmentStore, new(MockUserStore))

			equipmentStore.On("GetEquipment", 10).Return(tt.equipment, nil)
			repo.On("HasPendingRequest", 10, 3).Return(tt.pending, nil)

			_, err := service.CreateRequest(3, CreateRequestRequest{
				RequestType: "direct",
				EquipmentID: intPtr(10),
			})

			assert.Error(t, err)
			domainErr, ok := custom_error.AsDomain(err)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, domainErr.Kind)
			repo.AssertNotCalled(t, "InsertRequest", mock.Anything)
		})
	}
}

func TestCreateRequestBroadcastNeedsCategory(t *testing.T) {
	service := newTestService(new(MockTransferRepository), new(MockEquipmentStore), new(MockUserStore))

	_, err := service.CreateRequest(3, CreateRequestRequest{RequestType: "broadcast"})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindValidation, domainErr.Kind)
}

func TestRespondToRequestAccept(t *testing.T) {
	repo := new(MockTransferRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	holderID := 7
	request := &models.TransferRequest{
		ID:          42,
		RequestType: metadata.RequestDirect,
		EquipmentID: intPtr(10),
		RequesterID: 3,
		HolderID:    &holderID,
		Status:      metadata.RequestPending,
	}

	repo.On("GetRequest", 42).Return(request, nil)
	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:              10,
		CurrentHolderID: &holderID,
		IsTransferable:  true,
	}, nil)
	repo.On("TransitionRequest", mock.Anything, 42, []metadata.RequestStatus{metadata.RequestPending}, metadata.RequestAccepted, mock.Anything).Return(true, nil)
	repo.On("InsertTransfer", mock.Anything, mock.MatchedBy(func(transfer *models.Transfer) bool {
		return transfer.EquipmentID == 10 &&
			transfer.FromUserID == holderID &&
			transfer.ToUserID == 3 &&
			transfer.TransferType == metadata.TransferPeer &&
			transfer.FromConfirmedAt == nil &&
			transfer.ToConfirmedAt == nil
	})).Return(99, nil)

	_, err := service.RespondToRequest(42, holderID, RespondRequest{Action: "accept"})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestRespondToRequestNotHolder(t *testing.T) {
	repo := new(MockTransferRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	holderID := 7
	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequestType: metadata.RequestDirect,
		EquipmentID: intPtr(10),
		RequesterID: 3,
		Status:      metadata.RequestPending,
	}, nil)
	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:              10,
		CurrentHolderID: &holderID,
	}, nil)

	_, err := service.RespondToRequest(42, 99, RespondRequest{Action: "accept"})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindForbidden, domainErr.Kind)
	repo.AssertNotCalled(t, "TransitionRequest", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRespondToRequestTerminalState(t *testing.T) {
	repo := new(MockTransferRepository)
	service := newTestService(repo, new(MockEquipmentStore), new(MockUserStore))

	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequestType: metadata.RequestDirect,
		EquipmentID: intPtr(10),
		Status:      metadata.RequestCancelled,
	}, nil)

	_, err := service.RespondToRequest(42, 7, RespondRequest{Action: "reject"})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindInvalidState, domainErr.Kind)
}

func TestCancelRequestOnlyRequester(t *testing.T) {
	repo := new(MockTransferRepository)
	service := newTestService(repo, new(MockEquipmentStore), new(MockUserStore))

	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequesterID: 3,
		Status:      metadata.RequestPending,
	}, nil)

	_, err := service.CancelRequest(42, 99, false)

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindForbidden, domainErr.Kind)
}

func TestCancelRequestTerminalState(t *testing.T) {
	repo := new(MockTransferRepository)
	service := newTestService(repo, new(MockEquipmentStore), new(MockUserStore))

	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequesterID: 3,
		Status:      metadata.RequestCompleted,
	}, nil)

	_, err := service.CancelRequest(42, 3, false)

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindInvalidState, domainErr.Kind)
}

func TestApproveRequestOutsideTeam(t *testing.T) {
	repo := new(MockTransferRepository)
	userStore := new(MockUserStore)
	service := newTestService(repo, new(MockEquipmentStore), userStore)

	holderID := 7
	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequesterID: 3,
		HolderID:    &holderID,
		Status:      metadata.RequestRequiresApproval,
	}, nil)
	userStore.On("IsTeamMember", 50, 3).Return(false, nil)
	userStore.On("IsTeamMember", 50, 7).Return(false, nil)

	_, err := service.ApproveRequest(42, 50, false, ApprovalRequest{Action: "approve"})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindForbidden, domainErr.Kind)
}

func TestApproveRequestReleasesToPending(t *testing.T) {
	repo := new(MockTransferRepository)
	userStore := new(MockUserStore)
	service := newTestService(repo, new(MockEquipmentStore), userStore)

	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequesterID: 3,
		Status:      metadata.RequestRequiresApproval,
	}, nil)
	userStore.On("IsTeamMember", 50, 3).Return(true, nil)
	repo.On("TransitionRequest", mock.Anything, 42, []metadata.RequestStatus{metadata.RequestRequiresApproval}, metadata.RequestPending, mock.MatchedBy(func(extra goqu.Record) bool {
		return extra["approved_by"] == 50
	})).Return(true, nil)

	_, err := service.ApproveRequest(42, 50, false, ApprovalRequest{Action: "approve"})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAcceptOfferCascade(t *testing.T) {
	repo := new(MockTransferRepository)
	service := newTestService(repo, new(MockEquipmentStore), new(MockUserStore))

	offer := &models.TransferOffer{
		ID:          5,
		RequestID:   42,
		OffererID:   7,
		EquipmentID: 10,
		Status:      metadata.OfferPending,
	}
	request := &models.TransferRequest{
		ID:          42,
		RequestType: metadata.RequestBroadcast,
		RequesterID: 3,
		Status:      metadata.RequestPending,
	}

	repo.On("GetOffer", 5).Return(offer, nil)
	repo.On("GetRequest", 42).Return(request, nil)
	repo.On("AcceptOffer", mock.Anything, 5).Return(true, nil)
	repo.On("TransitionRequest", mock.Anything, 42, []metadata.RequestStatus{metadata.RequestPending}, metadata.RequestAccepted, mock.MatchedBy(func(extra goqu.Record) bool {
		return extra["equipment_id"] == 10 && extra["holder_id"] == 7
	})).Return(true, nil)
	repo.On("RejectSiblingOffers", mock.Anything, 42, 5).Return(nil)
	repo.On("InsertTransfer", mock.Anything, mock.MatchedBy(func(transfer *models.Transfer) bool {
		return transfer.EquipmentID == 10 && transfer.FromUserID == 7 && transfer.ToUserID == 3
	})).Return(99, nil)

	_, err := service.AcceptOffer(5, 3)

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAcceptOfferNotRequester(t *testing.T) {
	repo := new(MockTransferRepository)
	service := newTestService(repo, new(MockEquipmentStore), new(MockUserStore))

	repo.On("GetOffer", 5).Return(&models.TransferOffer{
		ID:        5,
		RequestID: 42,
		Status:    metadata.OfferPending,
	}, nil)
	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequesterID: 3,
		Status:      metadata.RequestPending,
	}, nil)

	_, err := service.AcceptOffer(5, 99)

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindForbidden, domainErr.Kind)
	repo.AssertNotCalled(t, "AcceptOffer", mock.Anything, mock.Anything)
}

func TestAcceptOfferLosesRace(t *testing.T) {
	repo := new(MockTransferRepository)
	service := newTestService(repo, new(MockEquipmentStore), new(MockUserStore))

	repo.On("GetOffer", 5).Return(&models.TransferOffer{
		ID:        5,
		RequestID: 42,
		Status:    metadata.OfferPending,
	}, nil)
	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequesterID: 3,
		Status:      metadata.RequestPending,
	}, nil)
	repo.On("AcceptOffer", mock.Anything, 5).Return(false, nil)

	_, err := service.AcceptOffer(5, 3)

	assert.Error(t, err)
	repo.AssertNotCalled(t, "RejectSiblingOffers", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "InsertTransfer", mock.Anything, mock.Anything)
}

func TestCreateOfferRequiresHolding(t *testing.T) {
	repo := new(MockTransferRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	holderID := 8
	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequestType: metadata.RequestBroadcast,
		RequesterID: 3,
		Status:      metadata.RequestPending,
	}, nil)
	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:              10,
		CurrentHolderID: &holderID,
		IsTransferable:  true,
	}, nil)

	_, err := service.CreateOffer(42, 7, CreateOfferRequest{EquipmentID: 10})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindForbidden, domainErr.Kind)
}

func TestConfirmHandoverFirstSideDoesNotFlip(t *testing.T) {
	repo := new(MockTransferRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	transfer := &models.Transfer{ID: 99, EquipmentID: 10, FromUserID: 7, ToUserID: 3, RequestID: intPtr(42)}

	repo.On("GetTransfer", 99).Return(transfer, nil)
	repo.On("StampHandover", mock.Anything, 99, mock.Anything, mock.Anything).Return(true, nil)
	now := time.Now()
	repo.On("GetTransferTx", mock.Anything, 99).Return(&models.Transfer{
		ID: 99, EquipmentID: 10, FromUserID: 7, ToUserID: 3,
		FromConfirmedAt: &now,
	}, nil)

	_, err := service.ConfirmHandover(99, 7, models.Evidence{})

	assert.NoError(t, err)
	equipmentStore.AssertNotCalled(t, "AssignHolder", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmReceiptSecondSideFlipsCustody(t *testing.T) {
	repo := new(MockTransferRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	transfer := &models.Transfer{ID: 99, EquipmentID: 10, FromUserID: 7, ToUserID: 3, RequestID: intPtr(42)}
	now := time.Now()

	repo.On("GetTransfer", 99).Return(transfer, nil)
	repo.On("StampReceipt", mock.Anything, 99, mock.Anything, mock.Anything).Return(true, nil)
	repo.On("GetTransferTx", mock.Anything, 99).Return(&models.Transfer{
		ID: 99, EquipmentID: 10, FromUserID: 7, ToUserID: 3, RequestID: intPtr(42),
		FromConfirmedAt: &now,
		ToConfirmedAt:   &now,
	}, nil)
	equipmentStore.On("AssignHolder", mock.Anything, 10, 3).Return(nil)
	repo.On("TransitionRequest", mock.Anything, 42, []metadata.RequestStatus{metadata.RequestAccepted}, metadata.RequestCompleted, mock.Anything).Return(true, nil)

	_, err := service.ConfirmReceipt(99, 3, models.Evidence{})

	assert.NoError(t, err)
	equipmentStore.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestConfirmReceiptRepeatIsNoop(t *testing.T) {
	repo := new(MockTransferRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	now := time.Now()
	repo.On("GetTransfer", 99).Return(&models.Transfer{
		ID: 99, EquipmentID: 10, FromUserID: 7, ToUserID: 3,
		ToConfirmedAt: &now,
	}, nil)
	repo.On("StampReceipt", mock.Anything, 99, mock.Anything, mock.Anything).Return(false, nil)

	_, err := service.ConfirmReceipt(99, 3, models.Evidence{})

	assert.NoError(t, err)
	equipmentStore.AssertNotCalled(t, "AssignHolder", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "GetTransferTx", mock.Anything, mock.Anything)
}

func TestConfirmHandoverWrongParty(t *testing.T) {
	repo := new(MockTransferRepository)
	service := newTestService(repo, new(MockEquipmentStore), new(MockUserStore))

	repo.On("GetTransfer", 99).Return(&models.Transfer{
		ID: 99, FromUserID: 7, ToUserID: 3,
	}, nil)

	_, err := service.ConfirmHandover(99, 3, models.Evidence{})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindForbidden, domainErr.Kind)
}

func TestRepositoryErrorsPropagate(t *testing.T) {
	repo := new(MockTransferRepository)
	service := newTestService(repo, new(MockEquipmentStore), new(MockUserStore))

	repo.On("GetRequest", 42).Return(nil, errors.New("connection refused"))

	_, err := service.GetRequest(42)

	assert.Error(t, err)
	_, ok := custom_error.AsDomain(err)
	assert.False(t, ok)
}
