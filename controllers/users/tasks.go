package users

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"loomio/database"
	"loomio/middleware"
	"loomio/models"
	"loomio/utils"
)

type CreateTaskRequest struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	Priority     string `json:"priority" validate:"oneof=low medium high urgent"`
	TaskType     string `json:"task_type" validate:"oneof=individual group"`
	MaxAssignees int    `json:"max_assignees"`
	Points       uint   `json:"points"`
	Deadline     string `json:"deadline"`
	CommunityID  uint   `json:"community_id"`
}

// POST /v1/tasks
func CreateTaskHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	var req CreateTaskRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if req.CommunityID == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "community_id is required"})
		return
	}

	db := database.DB
	if !isCommunityAdmin(db, uid, req.CommunityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Only community admins can create tasks"})
		return
	}

	taskType := req.TaskType
	if taskType == "" {
		taskType = models.TaskTypeIndividual
	}
	maxAssignees := req.MaxAssignees
	if taskType == models.TaskTypeIndividual {
		maxAssignees = 1
	} else if maxAssignees < 1 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "max_assignees must be at least 1 for group tasks"})
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}
	points := req.Points
	if points == 0 {
		points = models.DefaultTaskPoints
	}

	var deadline *time.Time
	if req.Deadline != "" {
		t, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "deadline must be RFC3339"})
			return
		}
		deadline = &t
	}

	task := models.Task{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Priority:     priority,
		TaskType:     taskType,
		MaxAssignees: maxAssignees,
		Points:       points,
		Deadline:     deadline,
		Status:       models.TaskStatusOpen,
		CommunityID:  req.CommunityID,
		CreatorID:    uid,
	}
	if err := db.Create(&task).Error; err != nil {
		log.Printf("[task] create failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to create task"})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Task created", Data: task})
}

// GET /v1/communities/{id}/tasks
func CommunityTasksHandler(w http.ResponseWriter, r *http.Request) {
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
	if !isCommunityMember(db, uid, communityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "You are not a member of this community"})
		return
	}

	query := db.Where("community_id = ?", communityID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := r.URL.Query().Get("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}

	var tasks []models.Task
	if err := query.Order("id ASC").Find(&tasks).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	// caller's own assignment status per task
	var mine []models.TaskAssignment
	db.Where("user_id = ?", uid).Find(&mine)
	mineMap := make(map[uint]models.TaskAssignment, len(mine))
	for _, a := range mine {
		mineMap[a.TaskID] = a
	}

	// active assignee counts
	taskIDs := make([]uint, 0, len(tasks))
	for _, t := range tasks {
		taskIDs = append(taskIDs, t.ID)
	}
	countMap := make(map[uint]int64, len(taskIDs))
	if len(taskIDs) > 0 {
		type assignCount struct {
			TaskID uint
			Cnt    int64
		}
		var counts []assignCount
		db.Table("task_assignments").
			Select("task_id, COUNT(*) AS cnt").
			Where("task_id IN ? AND status <> ?", taskIDs, models.AssignmentStatusCancelled).
			Group("task_id").
			Scan(&counts)
		for _, c := range counts {
			countMap[c.TaskID] = c.Cnt
		}
	}

	resp := make([]map[string]interface{}, 0, len(tasks))
	for _, t := range tasks {
		row := map[string]interface{}{
			"id":             t.ID,
			"title":          t.Title,
			"description":    t.Description,
			"priority":       t.Priority,
			"task_type":      t.TaskType,
			"max_assignees":  t.MaxAssignees,
			"points":         t.Points,
			"deadline":       t.Deadline,
			"status":         t.Status,
			"assignee_count": countMap[t.ID],
			"full":           countMap[t.ID] >= int64(t.MaxAssignees),
		}
		if a, ok := mineMap[t.ID]; ok && a.Active() {
			row["my_status"] = a.Status
		}
		resp = append(resp, row)
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: resp})
}

// GET /v1/tasks/{id}
func TaskDetailHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	taskID := pathID(r, "id")
	if taskID == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid task id"})
		return
	}

	db := database.DB
	var task models.Task
	if err := db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Task not found"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	if !isCommunityMember(db, uid, task.CommunityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "You are not a member of this community"})
		return
	}

	type assignmentRow struct {
		models.TaskAssignment
		FullName string `json:"full_name"`
	}
	var assignments []assignmentRow
	db.Table("task_assignments").
		Select("task_assignments.*, users.full_name").
		Joins("JOIN users ON users.id = task_assignments.user_id").
		Where("task_assignments.task_id = ?", taskID).
		Order("task_assignments.id ASC").
		Scan(&assignments)
	if assignments == nil {
		assignments = make([]assignmentRow, 0)
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: map[string]interface{}{
		"task":        task,
		"assignments": assignments,
	}})
}

// DELETE /v1/tasks/{id} and /v1/tasks/{id}/delete
func DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	taskID := pathID(r, "id")
	if taskID == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid task id"})
		return
	}

	db := database.DB
	var task models.Task
	if err := db.First(&task, taskID).Error; err != nil {
		utils.WriteWorkflowError(w, err)
		return
	}
	if !isCommunityAdmin(db, uid, task.CommunityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Only community admins can delete tasks"})
		return
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskAssignment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&task).Error
	}); err != nil {
		log.Printf("[task] delete failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to delete task"})
		return
	}

	// best effort, the records are already gone
	go func(id uint) {
		if err := utils.DeleteEvidencePrefix(fmt.Sprintf("evidence/task-%d/", id)); err != nil {
			log.Printf("[task] evidence cleanup for task %d: %v", id, err)
		}
	}(taskID)

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Task deleted"})
}
