package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"loomio/controllers/auth"
	"loomio/controllers/users"
	"loomio/middleware"
)

// UsersRoutes registers every member-facing route on the given subrouter.
func UsersRoutes(api *mux.Router) {
	// Rate limiter login/register: 60 per IP per 5 minutes
	loginLimiter := middleware.NewIPRateLimiter(60, 5*time.Minute)
	// Rate limiter session: 120 reads, 60 writes per user per minute
	userLimiter := middleware.NewUserRateLimiter(120, 60, 60)

	// auth must run first so the user limiter can key on the user ID
	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(userLimiter.Middleware(h))
	}

	// Register & Login
	api.Handle("/register", loginLimiter.Middleware(http.HandlerFunc(auth.RegisterHandler))).Methods(http.MethodPost)
	api.Handle("/login", loginLimiter.Middleware(http.HandlerFunc(auth.LoginHandler))).Methods(http.MethodPost)
	api.Handle("/refresh", loginLimiter.Middleware(http.HandlerFunc(auth.RefreshHandler))).Methods(http.MethodPost)
	api.Handle("/logout", authed(auth.LogoutHandler)).Methods(http.MethodPost)
	api.Handle("/logout-all", authed(auth.LogoutAllHandler)).Methods(http.MethodPost)

	// Profile
	api.Handle("/users/info", authed(users.InfoHandler)).Methods(http.MethodGet)
	api.Handle("/users/profile", authed(users.UpdateProfileHandler)).Methods(http.MethodPut)
	api.Handle("/users/password", authed(users.ChangePasswordHandler)).Methods(http.MethodPut)
	api.Handle("/users/assignments", authed(users.MyAssignmentsHandler)).Methods(http.MethodGet)

	// Communities
	api.Handle("/communities", authed(users.CreateCommunityHandler)).Methods(http.MethodPost)
	api.Handle("/communities", authed(users.ListCommunitiesHandler)).Methods(http.MethodGet)
	api.Handle("/communities/join", authed(users.JoinCommunityHandler)).Methods(http.MethodPost)
	api.Handle("/communities/{id:[0-9]+}/members", authed(users.CommunityMembersHandler)).Methods(http.MethodGet)
	api.Handle("/communities/{id:[0-9]+}/leave", authed(users.LeaveCommunityHandler)).Methods(http.MethodDelete)
	api.Handle("/communities/{id:[0-9]+}/analytics", authed(users.CommunityAnalyticsHandler)).Methods(http.MethodGet)

	// Tasks
	api.Handle("/tasks", authed(users.CreateTaskHandler)).Methods(http.MethodPost)
	api.Handle("/communities/{id:[0-9]+}/tasks", authed(users.CommunityTasksHandler)).Methods(http.MethodGet)
	api.Handle("/tasks/{id:[0-9]+}", authed(users.TaskDetailHandler)).Methods(http.MethodGet)
	api.Handle("/tasks/{id:[0-9]+}", authed(users.DeleteTaskHandler)).Methods(http.MethodDelete)
	api.Handle("/tasks/{id:[0-9]+}/delete", authed(users.DeleteTaskHandler)).Methods(http.MethodDelete)

	// Assignment workflow
	api.Handle("/tasks/{id:[0-9]+}/self-assign", authed(users.SelfAssignHandler)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/assign-users", authed(users.AssignUsersHandler)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/status", authed(users.UpdateAssignmentStatusHandler)).Methods(http.MethodPut)
	api.Handle("/tasks/{id:[0-9]+}/submit", authed(users.SubmitHandler)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/evidence", authed(users.UploadEvidenceHandler)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/review", authed(users.ReviewTaskHandler)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/review/{user_id:[0-9]+}", authed(users.ReviewAssigneeHandler)).Methods(http.MethodPost)
	api.Handle("/tasks/{id:[0-9]+}/revoke", authed(users.RevokeAssignmentHandler)).Methods(http.MethodDelete)

	// Notifications
	api.Handle("/notifications", authed(users.ListNotificationsHandler)).Methods(http.MethodGet)
	api.Handle("/notifications/read-all", authed(users.MarkAllNotificationsReadHandler)).Methods(http.MethodPut)
	api.Handle("/notifications/{id:[0-9]+}/read", authed(users.MarkNotificationReadHandler)).Methods(http.MethodPut)
	api.Handle("/notifications/{id:[0-9]+}", authed(users.DeleteNotificationHandler)).Methods(http.MethodDelete)

	// Community events
	api.Handle("/communities/{id:[0-9]+}/events", authed(users.CreateEventHandler)).Methods(http.MethodPost)
	api.Handle("/communities/{id:[0-9]+}/events", authed(users.ListEventsHandler)).Methods(http.MethodGet)
	api.Handle("/events/{id:[0-9]+}", authed(users.DeleteEventHandler)).Methods(http.MethodDelete)
}
