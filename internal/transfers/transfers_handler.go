package transfers

import (
	"net/http"
	"strconv"

	custom_error "github.com/cpusmsng/vercajch/pkg/errors"
	"github.com/cpusmsng/vercajch/pkg/models"
	"github.com/cpusmsng/vercajch/pkg/roles"
	"github.com/cpusmsng/vercajch/pkg/security"

	"github.com/gin-gonic/gin"
)

type TransferHandler struct {
	Service *TransferService
}

func NewHandler(service *TransferService) *TransferHandler {
	return &TransferHandler{Service: service}
}

func (h *TransferHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/transfers/requests", security.Authorize(roles.TransfersRequest), h.CreateRequest)
	router.GET("/transfers/requests/sent", security.Authorize(roles.TransfersRequest), h.SentRequests)
	router.GET("/transfers/requests/received", security.Authorize(roles.TransfersRespond), h.ReceivedRequests)
	router.GET("/transfers/requests/available", security.Authorize(roles.TransfersRespond), h.AvailableRequests)
	router.GET("/transfers/requests/:id", security.Authorize(roles.TransfersRequest), h.GetRequest)
	router.POST("/transfers/requests/:id/respond", security.Authorize(roles.TransfersRespond), h.RespondToRequest)
	router.POST("/transfers/requests/:id/cancel", security.Authorize(roles.TransfersRequest), h.CancelRequest)
	router.POST("/transfers/requests/:id/approve", security.Authorize(roles.TransfersApprove), h.ApproveRequest)
	router.GET("/transfers/requests/:id/offers", security.Authorize(roles.TransfersRequest), h.RequestOffers)
	router.POST("/transfers/requests/:id/offers", security.Authorize(roles.TransfersRespond), h.CreateOffer)
	router.POST("/transfers/offers/:id/accept", security.Authorize(roles.TransfersRequest), h.AcceptOffer)
	router.GET("/transfers/pending-approval", security.Authorize(roles.TransfersApprove), h.PendingApprovals)

	router.GET("/transfers/history", h.History)
	router.GET("/transfers/:id", h.GetTransfer)
	router.POST("/transfers/:id/confirm-handover", h.ConfirmHandover)
	router.POST("/transfers/:id/confirm-receipt", h.ConfirmReceipt)
}

// respondWithError maps service errors onto HTTP responses. Domain errors
// carry their own status; anything else is a 500.
func respondWithError(c *gin.Context, err error) {
	if domainErr, ok := custom_error.AsDomain(err); ok {
		c.JSON(domainErr.HTTPStatus(), gin.H{"error": domainErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

func currentUser(c *gin.Context) (int, bool) {
	userID, err := security.CurrentUserID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unable to identify user"})
		return 0, false
	}
	return userID, true
}

func (h *TransferHandler) CreateRequest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var payload CreateRequestRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	request, err := h.Service.CreateRequest(userID, payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

func (h *TransferHandler) GetRequest(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}

	request, err := h.Service.GetRequest(requestID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *TransferHandler) SentRequests(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.Service.SentRequests(userID, c.Query("status"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *TransferHandler) ReceivedRequests(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.Service.ReceivedRequests(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *TransferHandler) AvailableRequests(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.Service.AvailableRequests(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *TransferHandler) RespondToRequest(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var payload RespondRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	request, err := h.Service.RespondToRequest(requestID, userID, payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *TransferHandler) CancelRequest(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	cancelAny := roles.HasPermission(roles.Role(security.CurrentRole(c)), roles.TransfersCancelAny)

	request, err := h.Service.CancelRequest(requestID, userID, cancelAny)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *TransferHandler) ApproveRequest(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var payload ApprovalRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	approveAll := roles.HasPermission(roles.Role(security.CurrentRole(c)), roles.TransfersViewAll)

	request, err := h.Service.ApproveRequest(requestID, userID, approveAll, payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *TransferHandler) PendingApprovals(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	requests, err := h.Service.PendingApprovals(userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

func (h *TransferHandler) CreateOffer(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var payload CreateOfferRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	offer, err := h.Service.CreateOffer(requestID, userID, payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, offer)
}

func (h *TransferHandler) RequestOffers(c *gin.Context) {
	requestID, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	offers, err := h.Service.RequestOffers(requestID, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, offers)
}

func (h *TransferHandler) AcceptOffer(c *gin.Context) {
	offerID, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	request, err := h.Service.AcceptOffer(offerID, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *TransferHandler) ConfirmHandover(c *gin.Context) {
	h.confirm(c, h.Service.ConfirmHandover)
}

func (h *TransferHandler) ConfirmReceipt(c *gin.Context) {
	h.confirm(c, h.Service.ConfirmReceipt)
}

func (h *TransferHandler) confirm(c *gin.Context, fn func(int, int, models.Evidence) (*models.Transfer, error)) {
	transferID, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var evidence models.Evidence
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&evidence); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
			return
		}
	}

	transfer, err := fn(transferID, userID, evidence)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, transfer)
}

func (h *TransferHandler) GetTransfer(c *gin.Context) {
	transferID, ok := pathID(c)
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	transfer, err := h.Service.GetTransfer(transferID, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, transfer)
}

func (h *TransferHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var equipmentID *int
	if raw := c.Query("equipment_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid equipment_id"})
			return
		}
		equipmentID = &id
	}

	transfers, err := h.Service.History(userID, equipmentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, transfers)
}
