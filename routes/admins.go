package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"loomio/controllers/admins"
	"loomio/middleware"
)

// SetAdminRoutes registers the platform admin routes. Every route requires a
// valid access token whose user is still an active platform admin.
func SetAdminRoutes(api *mux.Router) {
	adminRouter := api.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.PlatformAdminMiddleware)

	// Dashboard stats
	adminRouter.Handle("/dashboard", http.HandlerFunc(admins.DashboardHandler)).Methods(http.MethodGet)

	// User management
	adminRouter.Handle("/users", http.HandlerFunc(admins.ListUsersHandler)).Methods(http.MethodGet)
	adminRouter.Handle("/users/{id:[0-9]+}", http.HandlerFunc(admins.UserDetailHandler)).Methods(http.MethodGet)
	adminRouter.Handle("/users/{id:[0-9]+}", http.HandlerFunc(admins.UpdateUserHandler)).Methods(http.MethodPut)

	// Community management
	adminRouter.Handle("/communities", http.HandlerFunc(admins.ListCommunitiesHandler)).Methods(http.MethodGet)
	adminRouter.Handle("/communities/{id:[0-9]+}", http.HandlerFunc(admins.DeleteCommunityHandler)).Methods(http.MethodDelete)

	// Application settings
	adminRouter.Handle("/settings", http.HandlerFunc(admins.GetSettingsHandler)).Methods(http.MethodGet)
	adminRouter.Handle("/settings", http.HandlerFunc(admins.UpdateSettingsHandler)).Methods(http.MethodPut)
}
