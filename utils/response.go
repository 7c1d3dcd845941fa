package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"loomio/models"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// WriteWorkflowError maps domain errors from the assignment workflow onto
// HTTP responses. Unknown errors become a generic 500 and are expected to be
// logged by the caller.
func WriteWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrCapacityExceeded):
		WriteJSON(w, http.StatusConflict, APIResponse{Success: false, Message: "Task has reached its maximum number of assignees"})
	case errors.Is(err, models.ErrAlreadyAssigned):
		WriteJSON(w, http.StatusConflict, APIResponse{Success: false, Message: "You are already assigned to this task"})
	case errors.Is(err, models.ErrInvalidTransition):
		WriteJSON(w, http.StatusConflict, APIResponse{Success: false, Message: "Assignment is not in a valid state for this action"})
	case errors.Is(err, models.ErrDeadlinePassed):
		WriteJSON(w, http.StatusBadRequest, APIResponse{Success: false, Message: "Task deadline has passed"})
	case errors.Is(err, models.ErrNotAssigned):
		WriteJSON(w, http.StatusNotFound, APIResponse{Success: false, Message: "You have no assignment on this task"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		WriteJSON(w, http.StatusNotFound, APIResponse{Success: false, Message: "Not found"})
	default:
		WriteJSON(w, http.StatusInternalServerError, APIResponse{Success: false, Message: "Internal server error"})
	}
}

// GetStringValue returns the value of a nullable string pointer or empty string if nil
func GetStringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
