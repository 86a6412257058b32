package checkouts

import (
	"net/http"
	"strconv"

	custom_error "github.com/cpusmsng/vercajch/pkg/errors"
	"github.com/cpusmsng/vercajch/pkg/roles"
	"github.com/cpusmsng/vercajch/pkg/security"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	Service *CheckoutService
}

func NewHandler(service *CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{Service: service}
}

func (h *CheckoutHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/checkouts", security.Authorize(roles.CheckoutSelf), h.Checkout)
	router.GET("/checkouts", security.Authorize(roles.CheckoutSelf), h.ListCheckouts)
	router.GET("/checkouts/:id", security.Authorize(roles.CheckoutSelf), h.GetCheckout)
	router.POST("/checkouts/:id/return", security.Authorize(roles.Checkin), h.Return)
	router.POST("/checkouts/:id/extend", security.Authorize(roles.CheckoutSelf), h.Extend)
}

func respondWithError(c *gin.Context, err error) {
	if domainErr, ok := custom_error.AsDomain(err); ok {
		c.JSON(domainErr.HTTPStatus(), gin.H{"error": domainErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
}

func (h *CheckoutHandler) actor(c *gin.Context) (int, bool, bool) {
	userID, err := security.CurrentUserID(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unable to identify user"})
		return 0, false, false
	}
	forTeam := roles.HasPermission(roles.Role(security.CurrentRole(c)), roles.CheckoutTeam)
	return userID, forTeam, true
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

func (h *CheckoutHandler) Checkout(c *gin.Context) {
	actorID, forTeam, ok := h.actor(c)
	if !ok {
		return
	}

	var payload CheckoutRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	checkout, err := h.Service.Checkout(actorID, forTeam, payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkout)
}

func (h *CheckoutHandler) Return(c *gin.Context) {
	checkoutID, ok := pathID(c)
	if !ok {
		return
	}
	actorID, forTeam, ok := h.actor(c)
	if !ok {
		return
	}

	var payload ReturnRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
			return
		}
	}

	checkout, err := h.Service.Return(checkoutID, actorID, forTeam, payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkout)
}

func (h *CheckoutHandler) Extend(c *gin.Context) {
	checkoutID, ok := pathID(c)
	if !ok {
		return
	}
	actorID, forTeam, ok := h.actor(c)
	if !ok {
		return
	}

	var payload ExtendRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	checkout, err := h.Service.Extend(checkoutID, actorID, forTeam, payload)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkout)
}

func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	checkoutID, ok := pathID(c)
	if !ok {
		return
	}
	actorID, forTeam, ok := h.actor(c)
	if !ok {
		return
	}

	checkout, err := h.Service.GetCheckout(checkoutID, actorID, forTeam)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkout)
}

func (h *CheckoutHandler) ListCheckouts(c *gin.Context) {
	actorID, forTeam, ok := h.actor(c)
	if !ok {
		return
	}

	role := roles.Role(security.CurrentRole(c))
	scope := ScopeSelf
	if roles.HasPermission(role, roles.TransfersViewAll) {
		scope = ScopeAll
	} else if forTeam {
		scope = ScopeTeam
	}

	filter := ListFilter{
		Status:      c.Query("status"),
		OverdueOnly: c.Query("overdue") == "true",
	}
	if raw := c.Query("equipment_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid equipment_id"})
			return
		}
		filter.EquipmentID = &id
	}
	if raw := c.Query("user_id"); raw != "" && scope == ScopeAll {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
			return
		}
		filter.UserIDs = []int{id}
	}

	items, err := h.Service.List(actorID, scope, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}
