package users

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loomio/database"
	"loomio/middleware"
	"loomio/models"
	"loomio/utils"
)

// assignUserLocked creates an assignment for userID on the given task. The
// caller must run it inside a transaction; the task row is locked FOR UPDATE
// so the capacity check and the insert cannot race with a concurrent assign.
func assignUserLocked(tx *gorm.DB, taskID, userID uint) (*models.TaskAssignment, error) {
	var task models.Task
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusOpen {
		return nil, models.ErrInvalidTransition
	}

	var existing models.TaskAssignment
	err := tx.Where("task_id = ? AND user_id = ?", taskID, userID).First(&existing).Error
	switch {
	case err == nil:
		if existing.Active() {
			return nil, models.ErrAlreadyAssigned
		}
		// a cancelled assignment can be re-activated, subject to capacity
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var activeCount int64
	if err := tx.Model(&models.TaskAssignment{}).
		Where("task_id = ? AND status <> ?", taskID, models.AssignmentStatusCancelled).
		Count(&activeCount).Error; err != nil {
		return nil, err
	}
	if activeCount >= int64(task.MaxAssignees) {
		return nil, models.ErrCapacityExceeded
	}

	if existing.ID != 0 {
		existing.Status = models.AssignmentStatusAssigned
		existing.SubmissionLink = nil
		existing.SubmissionNotes = nil
		existing.SubmittedAt = nil
		existing.ReviewNotes = nil
		existing.ReviewedAt = nil
		existing.CompletedAt = nil
		if err := tx.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	assignment := models.TaskAssignment{
		TaskID: taskID,
		UserID: userID,
		Status: models.AssignmentStatusAssigned,
	}
	if err := tx.Create(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// POST /v1/tasks/{id}/self-assign
func SelfAssignHandler(w http.ResponseWriter, r *http.Request) {
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
	if !isCommunityMember(db, uid, task.CommunityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "You are not a member of this community"})
		return
	}

	var assignment *models.TaskAssignment
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		assignment, txErr = assignUserLocked(tx, taskID, uid)
		return txErr
	})
	if err != nil {
		utils.WriteWorkflowError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Task assigned", Data: assignment})
}

type AssignUsersRequest struct {
	UserIDs []uint `json:"user_ids"`
}

// POST /v1/tasks/{id}/assign-users
func AssignUsersHandler(w http.ResponseWriter, r *http.Request) {
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
	var req AssignUsersRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if len(req.UserIDs) == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "user_ids is required"})
		return
	}

	db := database.DB
	var task models.Task
	if err := db.First(&task, taskID).Error; err != nil {
		utils.WriteWorkflowError(w, err)
		return
	}
	if !isCommunityAdmin(db, uid, task.CommunityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Only community admins can assign users"})
		return
	}

	// every target must belong to the community
	var memberCount int64
	db.Model(&models.Membership{}).
		Where("community_id = ? AND user_id IN ?", task.CommunityID, req.UserIDs).
		Count(&memberCount)
	if memberCount != int64(len(req.UserIDs)) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "All assignees must be members of the community"})
		return
	}

	assigned := make([]models.TaskAssignment, 0, len(req.UserIDs))
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, targetID := range req.UserIDs {
			a, err := assignUserLocked(tx, taskID, targetID)
			if err != nil {
				if errors.Is(err, models.ErrAlreadyAssigned) {
					continue
				}
				return err
			}
			assigned = append(assigned, *a)
		}
		return nil
	})
	if err != nil {
		utils.WriteWorkflowError(w, err)
		return
	}

	for _, a := range assigned {
		db.Create(&models.Notification{
			UserID:  a.UserID,
			Title:   "New task assignment",
			Message: fmt.Sprintf("You have been assigned to task %q", task.Title),
			Type:    models.NotificationTypeAssignment,
		})
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Users assigned", Data: assigned})
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted in_progress"`
}

// PUT /v1/tasks/{id}/status
//
// Members move their own assignment forward: assigned -> accepted ->
// in_progress. Submission and review have dedicated endpoints.
func UpdateAssignmentStatusHandler(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateStatusRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB
	var assignment models.TaskAssignment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND user_id = ?", taskID, uid).First(&assignment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotAssigned
			}
			return err
		}
		if !models.CanTransition(assignment.Status, req.Status) {
			return models.ErrInvalidTransition
		}
		assignment.Status = req.Status
		return tx.Save(&assignment).Error
	})
	if err != nil {
		utils.WriteWorkflowError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Status updated", Data: assignment})
}

type SubmitRequest struct {
	SubmissionLink  string `json:"submission_link" validate:"required"`
	SubmissionNotes string `json:"submission_notes"`
}

// POST /v1/tasks/{id}/submit
func SubmitHandler(w http.ResponseWriter, r *http.Request) {
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
	var req SubmitRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB
	var assignment models.TaskAssignment
	err := db.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, taskID).Error; err != nil {
			return err
		}
		// deadline is a hard server-side rule, checked before any mutation
		if task.DeadlinePassed(time.Now()) {
			return models.ErrDeadlinePassed
		}
		if err := tx.Where("task_id = ? AND user_id = ?", taskID, uid).First(&assignment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotAssigned
			}
			return err
		}
		if !models.CanTransition(assignment.Status, models.AssignmentStatusSubmitted) {
			return models.ErrInvalidTransition
		}
		now := time.Now()
		assignment.Status = models.AssignmentStatusSubmitted
		assignment.SubmissionLink = &req.SubmissionLink
		assignment.SubmittedAt = &now
		if req.SubmissionNotes != "" {
			assignment.SubmissionNotes = &req.SubmissionNotes
		}
		return tx.Save(&assignment).Error
	})
	if err != nil {
		utils.WriteWorkflowError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Submission received", Data: assignment})
}

type ReviewRequest struct {
	Action      string `json:"action" validate:"required,oneof=approve reject"`
	ReviewNotes string `json:"review_notes"`
}

// reviewAssignmentLocked applies a review decision to one assignment. Runs
// inside a transaction; the assignment row is locked so a concurrent second
// approval cannot double-award points.
func reviewAssignmentLocked(tx *gorm.DB, task *models.Task, userID uint, action, notes string) (*models.TaskAssignment, error) {
	var assignment models.TaskAssignment
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("task_id = ? AND user_id = ?", task.ID, userID).
		First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotAssigned
		}
		return nil, err
	}
	if assignment.Status != models.AssignmentStatusSubmitted {
		return nil, models.ErrInvalidTransition
	}

	now := time.Now()
	assignment.ReviewedAt = &now
	if notes != "" {
		assignment.ReviewNotes = &notes
	}

	if action == "approve" {
		assignment.Status = models.AssignmentStatusCompleted
		assignment.CompletedAt = &now
		if !assignment.PointsAwarded {
			assignment.PointsAwarded = true
			if err := tx.Model(&models.User{}).
				Where("id = ?", assignment.UserID).
				Update("points", gorm.Expr("points + ?", task.Points)).Error; err != nil {
				return nil, err
			}
		}
	} else {
		// rejected work goes back to in_progress for resubmission
		assignment.Status = models.AssignmentStatusInProgress
		assignment.SubmittedAt = nil
	}

	if err := tx.Save(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// closeTaskIfDone flips the task status to completed once every active
// assignment is completed.
func closeTaskIfDone(tx *gorm.DB, taskID uint) error {
	var open int64
	if err := tx.Model(&models.TaskAssignment{}).
		Where("task_id = ? AND status NOT IN ?", taskID, []string{models.AssignmentStatusCompleted, models.AssignmentStatusCancelled}).
		Count(&open).Error; err != nil {
		return err
	}
	var completed int64
	if err := tx.Model(&models.TaskAssignment{}).
		Where("task_id = ? AND status = ?", taskID, models.AssignmentStatusCompleted).
		Count(&completed).Error; err != nil {
		return err
	}
	if open == 0 && completed > 0 {
		return tx.Model(&models.Task{}).Where("id = ?", taskID).
			Update("status", models.TaskStatusCompleted).Error
	}
	return nil
}

func reviewHandler(w http.ResponseWriter, r *http.Request, targetUserID uint) {
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
	var req ReviewRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB
	var task models.Task
	if err := db.First(&task, taskID).Error; err != nil {
		utils.WriteWorkflowError(w, err)
		return
	}
	if !isCommunityAdmin(db, uid, task.CommunityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Only community admins can review submissions"})
		return
	}

	reviewed := make([]models.TaskAssignment, 0, 1)
	err := db.Transaction(func(tx *gorm.DB) error {
		if targetUserID != 0 {
			a, err := reviewAssignmentLocked(tx, &task, targetUserID, req.Action, req.ReviewNotes)
			if err != nil {
				return err
			}
			reviewed = append(reviewed, *a)
		} else {
			// whole-task review: apply the decision to every submitted
			// assignment
			var submitted []models.TaskAssignment
			if err := tx.Where("task_id = ? AND status = ?", taskID, models.AssignmentStatusSubmitted).
				Find(&submitted).Error; err != nil {
				return err
			}
			if len(submitted) == 0 {
				return models.ErrInvalidTransition
			}
			for _, s := range submitted {
				a, err := reviewAssignmentLocked(tx, &task, s.UserID, req.Action, req.ReviewNotes)
				if err != nil {
					return err
				}
				reviewed = append(reviewed, *a)
			}
		}
		if req.Action == "approve" {
			return closeTaskIfDone(tx, taskID)
		}
		return nil
	})
	if err != nil {
		utils.WriteWorkflowError(w, err)
		return
	}

	for _, a := range reviewed {
		title := "Submission approved"
		message := fmt.Sprintf("Your submission for %q was approved, %d points awarded", task.Title, task.Points)
		if req.Action == "reject" {
			title = "Submission rejected"
			message = fmt.Sprintf("Your submission for %q was rejected, you may resubmit", task.Title)
			if notes := utils.GetStringValue(a.ReviewNotes); notes != "" {
				message += ": " + notes
			}
		}
		db.Create(&models.Notification{
			UserID:  a.UserID,
			Title:   title,
			Message: message,
			Type:    models.NotificationTypeReview,
		})
	}

	message := "Submission approved"
	if req.Action == "reject" {
		message = "Submission rejected"
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: message, Data: reviewed})
}

// POST /v1/tasks/{id}/review
func ReviewTaskHandler(w http.ResponseWriter, r *http.Request) {
	reviewHandler(w, r, 0)
}

// POST /v1/tasks/{id}/review/{user_id}
func ReviewAssigneeHandler(w http.ResponseWriter, r *http.Request) {
	targetID := pathID(r, "user_id")
	if targetID == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid user id"})
		return
	}
	reviewHandler(w, r, targetID)
}

// DELETE /v1/tasks/{id}/revoke
func RevokeAssignmentHandler(w http.ResponseWriter, r *http.Request) {
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
	var assignment models.TaskAssignment
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND user_id = ?", taskID, uid).First(&assignment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotAssigned
			}
			return err
		}
		// submitted work awaits review and completed work is final
		if !models.CanTransition(assignment.Status, models.AssignmentStatusCancelled) {
			return models.ErrInvalidTransition
		}
		assignment.Status = models.AssignmentStatusCancelled
		return tx.Save(&assignment).Error
	})
	if err != nil {
		utils.WriteWorkflowError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Assignment revoked"})
}

// POST /v1/tasks/{id}/evidence
//
// Accepts a multipart file, stores it in the evidence bucket and returns a
// presigned URL suitable for submission_link.
func UploadEvidenceHandler(w http.ResponseWriter, r *http.Request) {
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
	var assignment models.TaskAssignment
	if err := db.Where("task_id = ? AND user_id = ?", taskID, uid).First(&assignment).Error; err != nil {
		utils.WriteWorkflowError(w, models.ErrNotAssigned)
		return
	}
	if !assignment.Active() {
		utils.WriteWorkflowError(w, models.ErrInvalidTransition)
		return
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "file field is required"})
		return
	}
	defer file.Close()

	objectName := fmt.Sprintf("evidence/task-%d/user-%d/%d-%s", taskID, uid, time.Now().Unix(), header.Filename)
	url, err := utils.UploadEvidenceAndPresign(objectName, file, time.Hour)
	if err != nil {
		log.Printf("[evidence] upload failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Evidence upload failed"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Evidence uploaded", Data: map[string]interface{}{
		"object": objectName,
		"url":    url,
	}})
}
