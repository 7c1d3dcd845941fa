package users

import (
	"net/http"
	"time"

	"loomio/database"
	"loomio/middleware"
	"loomio/models"
	"loomio/utils"
)

type CreateEventRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartsAt    string `json:"starts_at" validate:"required"`
	EndsAt      string `json:"ends_at"`
}

// POST /v1/communities/{id}/events
func CreateEventHandler(w http.ResponseWriter, r *http.Request) {
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
	var req CreateEventRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB
	if !isCommunityAdmin(db, uid, communityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Only community admins can create events"})
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "starts_at must be RFC3339"})
		return
	}
	var endsAt time.Time
	if req.EndsAt != "" {
		endsAt, err = time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "ends_at must be RFC3339"})
			return
		}
		if endsAt.Before(startsAt) {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "ends_at must be after starts_at"})
			return
		}
	}

	event := models.Event{
		CommunityID: communityID,
		CreatorID:   uid,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
	}
	if err := db.Create(&event).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to create event"})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Event created", Data: event})
}

// GET /v1/communities/{id}/events?upcoming=true
func ListEventsHandler(w http.ResponseWriter, r *http.Request) {
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

	q := db.Where("community_id = ?", communityID).Order("starts_at ASC")
	if r.URL.Query().Get("upcoming") == "true" {
		q = q.Where("starts_at >= ?", time.Now())
	}

	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to load events"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Events", Data: events})
}

// DELETE /v1/events/{id}
func DeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	id := pathID(r, "id")
	if id == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid event id"})
		return
	}

	db := database.DB
	var event models.Event
	if err := db.First(&event, id).Error; err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Event not found"})
		return
	}
	if event.CreatorID != uid && !isCommunityAdmin(db, uid, event.CommunityID) {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Only the creator or a community admin can delete this event"})
		return
	}

	if err := db.Delete(&event).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to delete event"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Event deleted"})
}
