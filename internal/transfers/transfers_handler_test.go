package transfers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cpusmsng/vercajch/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupTestContext(body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("userID", "3")
	c.Set("role", "worker")

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestCreateRequestInvalidPayload(t *testing.T) {
	handler := NewHandler(newTestService(new(MockTransferRepository), new(MockEquipmentStore), new(MockUserStore)))

	c, w := setupTestContext([]byte(`{"equipment_id": 10}`))

	handler.CreateRequest(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRequestNotFound(t *testing.T) {
	repo := new(MockTransferRepository)
	handler := NewHandler(newTestService(repo, new(MockEquipmentStore), new(MockUserStore)))

	repo.On("GetRequest", 42).Return(nil, nil)

	c, w := setupTestContext(nil)
	c.Params = gin.Params{{Key: "id", Value: "42"}}

	handler.GetRequest(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmHandoverForbiddenStatus(t *testing.T) {
	repo := new(MockTransferRepository)
	handler := NewHandler(newTestService(repo, new(MockEquipmentStore), new(MockUserStore)))

	// caller 3 is the receiver, not the giver
	repo.On("GetTransfer", 99).Return(&models.Transfer{
		ID: 99, FromUserID: 7, ToUserID: 3,
	}, nil)

	c, w := setupTestContext(nil)
	c.Params = gin.Params{{Key: "id", Value: "99"}}

	handler.ConfirmHandover(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRespondConflictMapsTo409(t *testing.T) {
	repo := new(MockTransferRepository)
	equipmentStore := new(MockEquipmentStore)
	handler := NewHandler(newTestService(repo, equipmentStore, new(MockUserStore)))

	holderID := 3
	repo.On("GetRequest", 42).Return(&models.TransferRequest{
		ID:          42,
		RequestType: "direct",
		EquipmentID: intPtr(10),
		RequesterID: 8,
		Status:      "pending",
	}, nil)
	equipmentStore.On("GetEquipment", 10).Return(&models.Equipment{
		ID:              10,
		CurrentHolderID: &holderID,
	}, nil)
	repo.On("TransitionRequest", mock.Anything, 42, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	c, w := setupTestContext([]byte(`{"action": "reject"}`))
	c.Params = gin.Params{{Key: "id", Value: "42"}}

	handler.RespondToRequest(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}
