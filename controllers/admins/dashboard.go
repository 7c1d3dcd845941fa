package admins

import (
	"net/http"
	"time"

	"loomio/database"
	"loomio/models"
	"loomio/utils"
)

type signupDay struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// GET /v1/admin/dashboard
func DashboardHandler(w http.ResponseWriter, r *http.Request) {
	db := database.DB

	var totalUsers, totalCommunities, totalTasks, openTasks, completedTasks int64
	db.Model(&models.User{}).Count(&totalUsers)
	db.Model(&models.Community{}).Count(&totalCommunities)
	db.Model(&models.Task{}).Count(&totalTasks)
	db.Model(&models.Task{}).Where("status = ?", models.TaskStatusOpen).Count(&openTasks)
	db.Model(&models.Task{}).Where("status = ?", models.TaskStatusCompleted).Count(&completedTasks)

	var pendingReviews int64
	db.Model(&models.TaskAssignment{}).
		Where("status = ?", models.AssignmentStatusSubmitted).
		Count(&pendingReviews)

	var pointsIssued struct {
		Total int64 `json:"total"`
	}
	db.Model(&models.User{}).Select("COALESCE(SUM(points), 0) AS total").Scan(&pointsIssued)

	since := time.Now().AddDate(0, 0, -7)
	var signups []signupDay
	db.Model(&models.User{}).
		Select("DATE(created_at) AS day, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("day ASC").
		Scan(&signups)

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Dashboard", Data: map[string]interface{}{
		"total_users":       totalUsers,
		"total_communities": totalCommunities,
		"total_tasks":       totalTasks,
		"open_tasks":        openTasks,
		"completed_tasks":   completedTasks,
		"pending_reviews":   pendingReviews,
		"points_issued":     pointsIssued.Total,
		"signups_last_7d":   signups,
	}})
}
