package admins

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"loomio/database"
	"loomio/models"
	"loomio/utils"
)

type communityRow struct {
	models.Community
	MemberCount int64 `json:"member_count"`
	TaskCount   int64 `json:"task_count"`
}

// GET /v1/admin/communities
func ListCommunitiesHandler(w http.ResponseWriter, r *http.Request) {
	db := database.DB

	q := db.Table("communities").
		Select("communities.*, " +
			"(SELECT COUNT(*) FROM memberships WHERE memberships.community_id = communities.id) AS member_count, " +
			"(SELECT COUNT(*) FROM tasks WHERE tasks.community_id = communities.id) AS task_count").
		Order("communities.created_at DESC")

	if search := r.URL.Query().Get("search"); search != "" {
		q = q.Where("communities.name LIKE ?", "%"+search+"%")
	}

	var rows []communityRow
	if err := q.Scan(&rows).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to load communities"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Communities", Data: rows})
}

// DELETE /v1/admin/communities/{id}
//
// Removes a community with its memberships, tasks and assignments. Points
// already awarded are kept.
func DeleteCommunityHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if id == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid community id"})
		return
	}

	db := database.DB
	var community models.Community
	if err := db.First(&community, id).Error; err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Community not found"})
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id IN (?)",
			tx.Model(&models.Task{}).Select("id").Where("community_id = ?", community.ID),
		).Delete(&models.TaskAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("community_id = ?", community.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("community_id = ?", community.ID).Delete(&models.Event{}).Error; err != nil {
			return err
		}
		if err := tx.Where("community_id = ?", community.ID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&community).Error
	})
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to delete community"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Community deleted"})
}
