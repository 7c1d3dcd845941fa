package users

import (
	"net/http"

	"loomio/database"
	"loomio/models"
	"loomio/utils"
)

type statusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type topEarner struct {
	UserID         uint   `json:"user_id"`
	FullName       string `json:"full_name"`
	Points         uint   `json:"points"`
	CompletedTasks int64  `json:"completed_tasks"`
}

// GET /v1/communities/{id}/analytics
//
// Community admin overview: membership, task totals and the submission
// pipeline broken down by assignment status.
func CommunityAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	communityID := pathID(r, "id")
	if communityID == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid community id"})
		return
	}

	db := database.DB
	if !isCommunityAdmin(db, uid, communityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Only community admins can view analytics"})
		return
	}

	var memberCount int64
	db.Model(&models.Membership{}).Where("community_id = ?", communityID).Count(&memberCount)

	var taskCounts []statusCount
	db.Model(&models.Task{}).
		Select("status, COUNT(*) AS count").
		Where("community_id = ?", communityID).
		Group("status").
		Scan(&taskCounts)

	var pipeline []statusCount
	db.Table("task_assignments").
		Select("task_assignments.status, COUNT(*) AS count").
		Joins("JOIN tasks ON tasks.id = task_assignments.task_id").
		Where("tasks.community_id = ?", communityID).
		Group("task_assignments.status").
		Scan(&pipeline)

	var earners []topEarner
	db.Table("users").
		Select("users.id AS user_id, users.full_name, users.points, "+
			"COUNT(CASE WHEN task_assignments.status = ? AND tasks.id IS NOT NULL THEN 1 END) AS completed_tasks",
			models.AssignmentStatusCompleted).
		Joins("JOIN memberships ON memberships.user_id = users.id AND memberships.community_id = ?", communityID).
		Joins("LEFT JOIN task_assignments ON task_assignments.user_id = users.id").
		Joins("LEFT JOIN tasks ON tasks.id = task_assignments.task_id AND tasks.community_id = ?", communityID).
		Group("users.id, users.full_name, users.points").
		Order("users.points DESC").
		Limit(10).
		Scan(&earners)

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Community analytics", Data: map[string]interface{}{
		"member_count": memberCount,
		"tasks":        taskCounts,
		"pipeline":     pipeline,
		"top_earners":  earners,
	}})
}
