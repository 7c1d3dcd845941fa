package users

import (
	"net/http"

	"loomio/database"
	"loomio/models"
	"loomio/utils"
)

type membershipInfo struct {
	CommunityID   uint   `json:"community_id"`
	CommunityName string `json:"community_name"`
	Role          string `json:"role"`
}

// GET /v1/users/info
func InfoHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	db := database.DB
	var user models.User
	if err := db.First(&user, uid).Error; err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "User not found"})
		return
	}

	var memberships []membershipInfo
	db.Table("memberships").
		Select("memberships.community_id, communities.name AS community_name, memberships.role").
		Joins("JOIN communities ON communities.id = memberships.community_id").
		Where("memberships.user_id = ?", uid).
		Scan(&memberships)

	var activeAssignments int64
	db.Model(&models.TaskAssignment{}).
		Where("user_id = ? AND status NOT IN ?", uid,
			[]string{models.AssignmentStatusCompleted, models.AssignmentStatusCancelled}).
		Count(&activeAssignments)

	var completedTasks int64
	db.Model(&models.TaskAssignment{}).
		Where("user_id = ? AND status = ?", uid, models.AssignmentStatusCompleted).
		Count(&completedTasks)

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "User info", Data: map[string]interface{}{
		"id":                 user.ID,
		"full_name":          user.FullName,
		"email":              user.Email,
		"role":               user.Role,
		"points":             user.Points,
		"status":             user.Status,
		"communities":        memberships,
		"active_assignments": activeAssignments,
		"completed_tasks":    completedTasks,
	}})
}

// GET /v1/users/assignments
//
// The caller's own assignments across every community, newest first.
func MyAssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	type assignmentRow struct {
		models.TaskAssignment
		TaskTitle   string `json:"task_title"`
		TaskPoints  uint   `json:"task_points"`
		CommunityID uint   `json:"community_id"`
	}

	db := database.DB
	q := db.Table("task_assignments").
		Select("task_assignments.*, tasks.title AS task_title, tasks.points AS task_points, tasks.community_id").
		Joins("JOIN tasks ON tasks.id = task_assignments.task_id").
		Where("task_assignments.user_id = ?", uid).
		Order("task_assignments.created_at DESC")

	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("task_assignments.status = ?", status)
	}

	var rows []assignmentRow
	if err := q.Scan(&rows).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to load assignments"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Assignments", Data: rows})
}
