package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coffeeshop/internal/models"
	"coffeeshop/internal/pagination"
	"coffeeshop/internal/services"
)

// UserHandler handles the admin user directory.
type UserHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServicer, auditService services.AuditServicer) *UserHandler {
	return &UserHandler{userService: userService, auditService: auditService}
}

// ListUsersQuery holds the list filters.
type ListUsersQuery struct {
	pagination.PageRequest
	Role string `form:"role" binding:"omitempty,user_role"`
}

// UpdateRoleRequest represents the request payload for changing a role.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,user_role"`
}

// ListUsers handles listing users.
// @Summary     List users
// @Tags        admin-users
// @Produce     json
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size"
// @Param       role      query string false "Role filter"
// @Success     200 {object} pagination.PageResponse[models.User]
// @Router      /admin/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	var q ListUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	var role *models.Role
	if q.Role != "" {
		r := models.Role(q.Role)
		role = &r
	}

	page, err := h.userService.ListUsers(c.Request.Context(), q.PageRequest, role)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetUser returns a single user's profile.
// @Summary     Get user
// @Tags        users
// @Produce     json
// @Param       id path string true "User ID"
// @Success     200 {object} ProfileResponse
// @Failure     403 {object} ErrorResponse "Not the owner"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileOf(user))
}

// UpdateRole changes a user's role.
// @Summary     Change role
// @Tags        admin-users
// @Accept      json
// @Produce     json
// @Param       id path string true "User ID"
// @Param       request body UpdateRoleRequest true "New role"
// @Success     200 {object} ProfileResponse
// @Failure     409 {object} ErrorResponse "Last admin"
// @Router      /admin/users/{id}/role [put]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	p, err := getPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.userService.UpdateRole(c.Request.Context(), p.ID, userID, models.Role(req.Role))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(p.ID, services.AuditChangeRole, userID, c.ClientIP(), map[string]interface{}{"role": req.Role})
	c.JSON(http.StatusOK, profileOf(user))
}

// DeleteUser removes a user.
// @Summary     Delete user
// @Tags        admin-users
// @Param       id path string true "User ID"
// @Success     204
// @Failure     400 {object} ErrorResponse "Cannot delete self"
// @Failure     409 {object} ErrorResponse "Last admin"
// @Router      /admin/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	p, err := getPrincipal(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	userID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.userService.DeleteUser(c.Request.Context(), p.ID, userID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(p.ID, services.AuditDeleteUser, userID, c.ClientIP(), nil)
	c.Status(http.StatusNoContent)
}
