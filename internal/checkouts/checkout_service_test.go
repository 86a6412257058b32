package checkouts

import (
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

type MockCheckoutRepository struct {
	mock.Mock
}

func (m *MockCheckoutRepository) InTransaction(fn func(tx *goqu.TxDatabase) error) error {
	return fn(nil)
}

func (m *MockCheckoutRepository) InsertCheckout(tx *goqu.TxDatabase, checkout *models.Checkout) (int, error) {
	args := m.Called(tx, checkout)
	return args.Int(0), args.Error(1)
}

func (m *MockCheckoutRepository) GetCheckout(checkoutID int) (*models.Checkout, error) {
	args := m.Called(checkoutID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Checkout), args.Error(1)
}

func (m *MockCheckoutRepository) GetActiveCheckoutForEquipment(equipmentID int) (*models.Checkout, error) {
	args := m.Called(equipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Checkout), args.Error(1)
}

func (m *MockCheckoutRepository) CloseCheckout(tx *goqu.TxDatabase, checkoutID int, returnedBy int, evidence models.Evidence, at time.Time) (bool, error) {
	args := m.Called(tx, checkoutID, returnedBy, evidence, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockCheckoutRepository) ExtendCheckout(checkoutID int, until time.Time) (bool, error) {
	args := m.Called(checkoutID, until)
	return args.Bool(0), args.Error(1)
}

func (m *MockCheckoutRepository) ListCheckouts(filter ListFilter) ([]models.Checkout, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Checkout), args.Error(1)
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

func (m *MockEquipmentStore) ClaimForCheckout(tx *goqu.TxDatabase, equipmentID int, holderID int, locationID *int) (bool, error) {
	args := m.Called(tx, equipmentID, holderID, locationID)
	return args.Bool(0), args.Error(1)
}

func (m *MockEquipmentStore) ReleaseToAvailable(tx *goqu.TxDatabase, equipmentID int, condition *string) error {
	args := m.Called(tx, equipmentID, condition)
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

func newTestService(repo *MockCheckoutRepository, equipment *MockEquipmentStore, users *MockUserStore) *CheckoutService {
	return NewCheckoutService(repo, equipment, users, events.NopPublisher{}, auditlog.NewAuditLog(nopPersister{}), zap.NewNop())
}

func TestCheckoutClaimsEquipment(t *testing.T) {
	repo := new(MockCheckoutRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:     10,
		Status: metadata.EquipmentAvailable,
	}, nil)
	equipmentStore.On("ClaimForCheckout", mock.Anything, 10, 3, (*int)(nil)).Return(true, nil)
	repo.On("InsertCheckout", mock.Anything, mock.MatchedBy(func(checkout *models.Checkout) bool {
		return checkout.EquipmentID == 10 &&
			checkout.UserID == 3 &&
			checkout.CheckedOutBy != nil && *checkout.CheckedOutBy == 3 &&
			checkout.Status == metadata.CheckoutActive
	})).Return(55, nil)
	repo.On("GetCheckout", 55).Return(&models.Checkout{ID: 55, Status: metadata.CheckoutActive}, nil)

	checkout, err := service.Checkout(3, false, CheckoutRequest{EquipmentID: 10})

	assert.NoError(t, err)
	assert.Equal(t, 55, checkout.ID)
	repo.AssertExpectations(t)
	equipmentStore.AssertExpectations(t)
}

func TestCheckoutLosesClaimRace(t *testing.T) {
	repo := new(MockCheckoutRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:     10,
		Status: metadata.EquipmentAvailable,
	}, nil)
	equipmentStore.On("ClaimForCheckout", mock.Anything, 10, 3, (*int)(nil)).Return(false, nil)

	_, err := service.Checkout(3, false, CheckoutRequest{EquipmentID: 10})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindConflict, domainErr.Kind)
	repo.AssertNotCalled(t, "InsertCheckout", mock.Anything, mock.Anything)
}

func TestCheckoutEquipmentAlreadyOut(t *testing.T) {
	repo := new(MockCheckoutRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	holder := 7
	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:              10,
		Status:          metadata.EquipmentCheckedOut,
		CurrentHolderID: &holder,
	}, nil)
	repo.On("GetActiveCheckoutForEquipment", 10).Return(&models.Checkout{
		ID:          41,
		EquipmentID: 10,
		UserID:      7,
		Status:      metadata.CheckoutActive,
	}, nil)

	_, err := service.Checkout(3, false, CheckoutRequest{EquipmentID: 10})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindInvalidState, domainErr.Kind)
	assert.Contains(t, domainErr.Message, "user 7")
	equipmentStore.AssertNotCalled(t, "ClaimForCheckout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "InsertCheckout", mock.Anything, mock.Anything)
}

func TestCheckoutForOtherUserNeedsTeam(t *testing.T) {
	service := newTestService(new(MockCheckoutRepository), new(MockEquipmentStore), new(MockUserStore))

	otherID := 9
	_, err := service.Checkout(3, false, CheckoutRequest{EquipmentID: 10, UserID: &otherID})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindForbidden, domainErr.Kind)
}

func TestCheckoutForTeamMember(t *testing.T) {
	repo := new(MockCheckoutRepository)
	equipmentStore := new(MockEquipmentStore)
	userStore := new(MockUserStore)
	service := newTestService(repo, equipmentStore, userStore)

	otherID := 9
	userStore.On("IsTeamMember", 3, 9).Return(true, nil)
	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:     10,
		Status: metadata.EquipmentAvailable,
	}, nil)
	equipmentStore.On("ClaimForCheckout", mock.Anything, 10, 9, (*int)(nil)).Return(true, nil)
	repo.On("InsertCheckout", mock.Anything, mock.MatchedBy(func(checkout *models.Checkout) bool {
		return checkout.UserID == 9 && *checkout.CheckedOutBy == 3
	})).Return(55, nil)
	repo.On("GetCheckout", 55).Return(&models.Checkout{ID: 55}, nil)

	_, err := service.Checkout(3, true, CheckoutRequest{EquipmentID: 10, UserID: &otherID})

	assert.NoError(t, err)
	userStore.AssertExpectations(t)
}

func TestReturnReleasesEquipment(t *testing.T) {
	repo := new(MockCheckoutRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	repo.On("GetCheckout", 55).Return(&models.Checkout{
		ID:          55,
		EquipmentID: 10,
		UserID:      3,
		Status:      metadata.CheckoutActive,
	}, nil)
	repo.On("CloseCheckout", mock.Anything, 55, 3, mock.Anything, mock.Anything).Return(true, nil)
	condition := "worn"
	equipmentStore.On("ReleaseToAvailable", mock.Anything, 10, &condition).Return(nil)

	_, err := service.Return(55, 3, false, ReturnRequest{Condition: &condition})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
	equipmentStore.AssertExpectations(t)
}

func TestReturnAlreadyReturned(t *testing.T) {
	repo := new(MockCheckoutRepository)
	equipmentStore := new(MockEquipmentStore)
	service := newTestService(repo, equipmentStore, new(MockUserStore))

	repo.On("GetCheckout", 55).Return(&models.Checkout{
		ID:     55,
		UserID: 3,
		Status: metadata.CheckoutReturned,
	}, nil)

	_, err := service.Return(55, 3, false, ReturnRequest{})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindInvalidState, domainErr.Kind)
	equipmentStore.AssertNotCalled(t, "ReleaseToAvailable", mock.Anything, mock.Anything, mock.Anything)
}

func TestReturnByOutsiderForbidden(t *testing.T) {
	repo := new(MockCheckoutRepository)
	userStore := new(MockUserStore)
	service := newTestService(repo, new(MockEquipmentStore), userStore)

	repo.On("GetCheckout", 55).Return(&models.Checkout{
		ID:     55,
		UserID: 3,
		Status: metadata.CheckoutActive,
	}, nil)
	userStore.On("IsTeamMember", 9, 3).Return(false, nil)

	_, err := service.Return(55, 9, true, ReturnRequest{})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindForbidden, domainErr.Kind)
}

func TestExtendRequiresFutureDate(t *testing.T) {
	service := newTestService(new(MockCheckoutRepository), new(MockEquipmentStore), new(MockUserStore))

	_, err := service.Extend(55, 3, false, ExtendRequest{
		ExpectedReturnAt: time.Now().Add(-time.Hour),
	})

	domainErr, ok := custom_error.AsDomain(err)
	assert.True(t, ok)
	assert.Equal(t, custom_error.KindValidation, domainErr.Kind)
}

func TestExtendActiveCheckout(t *testing.T) {
	repo := new(MockCheckoutRepository)
	service := newTestService(repo, new(MockEquipmentStore), new(MockUserStore))

	until := time.Now().Add(48 * time.Hour)
	repo.On("GetCheckout", 55).Return(&models.Checkout{
		ID:     55,
		UserID: 3,
		Status: metadata.CheckoutActive,
	}, nil)
	repo.On("ExtendCheckout", 55, until).Return(true, nil)

	_, err := service.Extend(55, 3, false, ExtendRequest{ExpectedReturnAt: until})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestListScopes(t *testing.T) {
	repo := new(MockCheckoutRepository)
	userStore := new(MockUserStore)
	service := newTestService(repo, new(MockEquipmentStore), userStore)

	repo.On("ListCheckouts", mock.MatchedBy(func(filter ListFilter) bool {
		return len(filter.UserIDs) == 1 && filter.UserIDs[0] == 3
	})).Return([]models.Checkout{}, nil).Once()

	_, err := service.List(3, ScopeSelf, ListFilter{})
	assert.NoError(t, err)

	userStore.On("TeamMemberIDs", 3).Return([]int{3, 9, 12}, nil)
	repo.On("ListCheckouts", mock.MatchedBy(func(filter ListFilter) bool {
		return len(filter.UserIDs) == 3
	})).Return([]models.Checkout{}, nil).Once()

	_, err = service.List(3, ScopeTeam, ListFilter{})
	assert.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	overdue := models.Checkout{Status: metadata.CheckoutActive, ExpectedReturnAt: &past}
	onTime := models.Checkout{Status: metadata.CheckoutActive, ExpectedReturnAt: &future}
	returned := models.Checkout{Status: metadata.CheckoutReturned, ExpectedReturnAt: &past}

	assert.True(t, overdue.IsOverdue(now))
	assert.False(t, onTime.IsOverdue(now))
	assert.False(t, returned.IsOverdue(now))
}
