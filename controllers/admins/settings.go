package admins

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"loomio/database"
	"loomio/middleware"
	"loomio/models"
	"loomio/utils"
)

// GET /v1/admin/settings
func GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	db := database.DB
	var setting models.Setting
	if err := db.First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// seed once on first read
			setting = models.Setting{}
			db.Create(&setting)
		} else {
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to load settings"})
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Settings", Data: setting})
}

type UpdateSettingsRequest struct {
	Name           *string `json:"name"`
	ClosedRegister *bool   `json:"closed_register"`
	Maintenance    *bool   `json:"maintenance"`
	SupportEmail   *string `json:"support_email" validate:"emailok"`
}

// PUT /v1/admin/settings
func UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	db := database.DB
	var setting models.Setting
	if err := db.First(&setting).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to load settings"})
			return
		}
		setting = models.Setting{}
		db.Create(&setting)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.ClosedRegister != nil {
		updates["closed_register"] = *req.ClosedRegister
	}
	if req.Maintenance != nil {
		updates["maintenance"] = *req.Maintenance
	}
	if req.SupportEmail != nil {
		updates["support_email"] = *req.SupportEmail
	}
	if len(updates) == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Nothing to update"})
		return
	}

	if err := db.Model(&setting).Updates(updates).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to update settings"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Settings updated", Data: setting})
}
