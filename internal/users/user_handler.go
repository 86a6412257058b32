package users

import (
	"net/http"
	"strconv"

	"github.com/cpusmsng/vercajch/pkg/roles"
	"github.com/cpusmsng/vercajch/pkg/security"

	"github.com/gin-gonic/gin"
)

type UsersHandler struct {
	repository *UserRepository
}

func NewHandler(r *UserRepository) *UsersHandler {
	return &UsersHandler{repository: r}
}

func (h *UsersHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/users", security.Authorize(roles.UsersView), h.GetUsers)
	router.GET("/users/:id", security.Authorize(roles.UsersView), h.GetUser)
}

func (h *UsersHandler) GetUsers(c *gin.Context) {
	users, err := h.repository.GetUsers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to get users", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *UsersHandler) GetUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	user, err := h.repository.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to get user", "details": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}
