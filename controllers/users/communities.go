package users

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"loomio/database"
	"loomio/middleware"
	"loomio/models"
	"loomio/utils"
)

type CreateCommunityRequest struct {
	Name        string `json:"name" validate:"required,nameok"`
	Description string `json:"description"`
}

// POST /v1/communities
func CreateCommunityHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	var req CreateCommunityRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB
	code, err := utils.GenerateCommunityCode(db, 8)
	if err != nil {
		log.Printf("[community] code generation failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	var community models.Community
	if err := db.Transaction(func(tx *gorm.DB) error {
		community = models.Community{
			Name:          strings.TrimSpace(req.Name),
			Description:   req.Description,
			CommunityCode: code,
			CreatorID:     uid,
		}
		if err := tx.Create(&community).Error; err != nil {
			return err
		}
		membership := models.Membership{
			UserID:      uid,
			CommunityID: community.ID,
			Role:        models.MembershipRoleAdmin,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}
		// creating a community promotes a plain member to community_admin
		return tx.Model(&models.User{}).
			Where("id = ? AND role = ?", uid, models.RoleMember).
			Update("role", models.RoleCommunityAdmin).Error
	}); err != nil {
		log.Printf("[community] create failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to create community"})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "Community created", Data: community})
}

type JoinCommunityRequest struct {
	CommunityCode string `json:"community_code" validate:"required"`
}

// POST /v1/communities/join
func JoinCommunityHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	var req JoinCommunityRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB
	var community models.Community
	code := strings.ToUpper(strings.TrimSpace(req.CommunityCode))
	if err := db.Where("community_code = ?", code).First(&community).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Invalid community code"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}

	var existing models.Membership
	if err := db.Where("user_id = ? AND community_id = ?", uid, community.ID).First(&existing).Error; err == nil {
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "You are already a member of this community"})
		return
	}

	membership := models.Membership{UserID: uid, CommunityID: community.ID, Role: models.MembershipRoleMember}
	if err := db.Create(&membership).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to join community"})
		return
	}

	db.Create(&models.Notification{
		UserID:  uid,
		Title:   "Welcome to " + community.Name,
		Message: "You joined the community " + community.Name,
		Type:    models.NotificationTypeCommunity,
	})

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Joined community", Data: community})
}

// GET /v1/communities
func ListCommunitiesHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r)
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}

	db := database.DB
	type communityRow struct {
		models.Community
		Role        string `json:"role"`
		MemberCount int64  `json:"member_count"`
	}
	var rows []communityRow
	if err := db.Table("communities").
		Select("communities.*, memberships.role AS role, (SELECT COUNT(*) FROM memberships m WHERE m.community_id = communities.id) AS member_count").
		Joins("JOIN memberships ON memberships.community_id = communities.id").
		Where("memberships.user_id = ?", uid).
		Order("communities.id ASC").
		Scan(&rows).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	if rows == nil {
		rows = make([]communityRow, 0)
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: rows})
}

// GET /v1/communities/{id}/members
func CommunityMembersHandler(w http.ResponseWriter, r *http.Request) {
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

	type memberRow struct {
		UserID   uint   `json:"user_id"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Role     string `json:"role"`
		Points   uint   `json:"points"`
	}
	var members []memberRow
	if err := db.Table("memberships").
		Select("users.id AS user_id, users.full_name, users.email, memberships.role, users.points").
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.community_id = ?", communityID).
		Order("users.points DESC").
		Scan(&members).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	if members == nil {
		members = make([]memberRow, 0)
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Successfully", Data: members})
}

// DELETE /v1/communities/{id}/leave
func LeaveCommunityHandler(w http.ResponseWriter, r *http.Request) {
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
	var membership models.Membership
	if err := db.Where("user_id = ? AND community_id = ?", uid, communityID).First(&membership).Error; err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "You are not a member of this community"})
		return
	}

	// the last admin cannot abandon the community
	if membership.Role == models.MembershipRoleAdmin {
		var adminCount int64
		db.Model(&models.Membership{}).
			Where("community_id = ? AND role = ?", communityID, models.MembershipRoleAdmin).
			Count(&adminCount)
		if adminCount <= 1 {
			utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{Success: false, Message: "You are the only admin of this community"})
			return
		}
	}

	if err := db.Delete(&membership).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Server error"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Left community"})
}

// pathID parses a numeric mux path variable, returning 0 when absent or
// malformed.
func pathID(r *http.Request, name string) uint {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func isCommunityMember(db *gorm.DB, userID, communityID uint) bool {
	var count int64
	db.Model(&models.Membership{}).
		Where("user_id = ? AND community_id = ?", userID, communityID).
		Count(&count)
	return count > 0
}

// isCommunityAdmin reports whether the user administers the community, either
// via an admin membership or the platform_admin role.
func isCommunityAdmin(db *gorm.DB, userID, communityID uint) bool {
	var user models.User
	if err := db.Select("role").First(&user, userID).Error; err != nil {
		return false
	}
	if user.Role == models.RolePlatformAdmin {
		return true
	}
	var count int64
	db.Model(&models.Membership{}).
		Where("user_id = ? AND community_id = ? AND role = ?", userID, communityID, models.MembershipRoleAdmin).
		Count(&count)
	return count > 0
}
