package admins

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"loomio/database"
	"loomio/middleware"
	"loomio/models"
	"loomio/utils"
)

// GET /v1/admin/users?status=Active&search=jane&page=1&limit=25
func ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	db := database.DB
	q := db.Model(&models.User{})

	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if role := r.URL.Query().Get("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if search := r.URL.Query().Get("search"); search != "" {
		like := "%" + search + "%"
		q = q.Where("full_name LIKE ? OR email LIKE ?", like, like)
	}

	var total int64
	q.Count(&total)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 25
	}

	var users []models.User
	if err := q.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&users).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to load users"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Users", Data: map[string]interface{}{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	}})
}

// GET /v1/admin/users/{id}
func UserDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if id == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid user id"})
		return
	}

	db := database.DB
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "User not found"})
		return
	}

	type membershipRow struct {
		CommunityID   uint   `json:"community_id"`
		CommunityName string `json:"community_name"`
		Role          string `json:"role"`
	}
	var memberships []membershipRow
	db.Table("memberships").
		Select("memberships.community_id, communities.name AS community_name, memberships.role").
		Joins("JOIN communities ON communities.id = memberships.community_id").
		Where("memberships.user_id = ?", user.ID).
		Scan(&memberships)

	var assignments []models.TaskAssignment
	db.Where("user_id = ?", user.ID).Order("created_at DESC").Limit(20).Find(&assignments)

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "User detail", Data: map[string]interface{}{
		"user":        user,
		"communities": memberships,
		"assignments": assignments,
	}})
}

type UpdateUserRequest struct {
	Status string `json:"status" validate:"oneof=Active Inactive Suspend"`
	Role   string `json:"role" validate:"oneof=member community_admin platform_admin"`
}

// PUT /v1/admin/users/{id}
func UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if id == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid user id"})
		return
	}
	var req UpdateUserRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if req.Status == "" && req.Role == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Nothing to update"})
		return
	}

	db := database.DB
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "User not found"})
		return
	}

	updates := map[string]interface{}{}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	if req.Role != "" {
		updates["role"] = req.Role
	}
	if err := db.Model(&user).Updates(updates).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to update user"})
		return
	}

	// suspended users lose their sessions
	if req.Status == "Suspend" {
		db.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Update("revoked", true)
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "User updated", Data: user})
}
