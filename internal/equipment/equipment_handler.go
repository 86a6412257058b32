package equipment

import (
	"net/http"
	"strconv"

	"github.com/cpusmsng/vercajch/internal/repository"
	"github.com/cpusmsng/vercajch/pkg/roles"
	"github.com/cpusmsng/vercajch/pkg/security"

	"github.com/gin-gonic/gin"
)

type EquipmentHandler struct {
	Repository *EquipmentRepository
}

func NewHandler(r *EquipmentRepository) *EquipmentHandler {
	return &EquipmentHandler{Repository: r}
}

func (h *EquipmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/equipment", security.Authorize(roles.EquipmentView), h.GetEquipmentList)
	router.GET("/equipment/:id", security.Authorize(roles.EquipmentView), h.GetEquipment)
}

func (h *EquipmentHandler) GetEquipment(c *gin.Context) {
	equipmentID, err := strconv.Atoi(c.Param("id"))
	if err != nil || equipmentID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Equipment ID is required"})
		return
	}

	eq, err := h.Repository.GetEquipment(equipmentID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unable to get equipment", "details": err.Error()})
		return
	}
	if eq == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Equipment not found"})
		return
	}

	c.JSON(http.StatusOK, eq)
}

func (h *EquipmentHandler) GetEquipmentList(c *gin.Context) {
	conditions := repository.NewQueryBuilder()

	if status := c.Query("status"); status != "" {
		conditions.AddCondition("status", status)
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		id, err := strconv.Atoi(categoryID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category_id"})
			return
		}
		conditions.AddCondition("category_id", id)
	}
	if holderID := c.Query("holder_id"); holderID != "" {
		id, err := strconv.Atoi(holderID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid holder_id"})
			return
		}
		conditions.AddCondition("current_holder_id", id)
	}

	items, err := h.Repository.GetEquipmentBy(conditions)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unable to get equipment list", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, items)
}
