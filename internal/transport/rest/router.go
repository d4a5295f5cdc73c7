package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/flightbase/fbo-management/internal/accesscontrol"
	"github.com/flightbase/fbo-management/internal/fuelorder"
	"github.com/flightbase/fbo-management/internal/transport/middleware"
	"github.com/flightbase/fbo-management/internal/transport/swagger"
	"github.com/flightbase/fbo-management/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Permission names the routes are guarded with. They live in the
// permissions table and are seeded by the seed command.
const (
	PermCreateFuelOrder   = "create_fuel_order"
	PermViewFuelOrder     = "view_fuel_order"
	PermManageFuelOrders  = "manage_fuel_orders"
	PermViewReceipts      = "view_receipts"
	PermManagePermissions = "manage_permissions"
	PermViewPermissions   = "view_permissions"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, resolver *accesscontrol.Resolver, accessHandler *accesscontrol.Handler, fuelOrderHandler *fuelorder.Handler, userHandler *user.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.Identity)

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Resource context template for routes scoped to one fuel order: the
	// order id comes from the {id} URL parameter per request.
	orderContext, err := accesscontrol.NewResourceContextFromParam(fuelorder.ResourceType, "id", false)
	if err != nil {
		panic(err)
	}
	ownedOrderContext, err := accesscontrol.NewResourceContextFromParam(fuelorder.ResourceType, "id", true)
	if err != nil {
		panic(err)
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Current user
		if userHandler != nil {
			r.Get("/users/me", userHandler.GetCurrentUser)
		}

		// Fuel order routes
		if fuelOrderHandler != nil {
			r.Route("/fuel-orders", func(fr chi.Router) {
				fr.Group(func(gr chi.Router) {
					gr.Use(middleware.RequirePermission(resolver, logger, PermCreateFuelOrder))
					gr.Post("/", fuelOrderHandler.CreateOrder)
				})

				fr.Group(func(gr chi.Router) {
					gr.Use(middleware.RequirePermission(resolver, logger, PermViewFuelOrder))
					gr.Get("/mine", fuelOrderHandler.GetMyOrders)
				})

				fr.Group(func(gr chi.Router) {
					gr.Use(middleware.RequirePermission(resolver, logger, PermManageFuelOrders))
					gr.Get("/", fuelOrderHandler.GetAllOrders)
				})

				// Reading one order needs the view permission scoped to
				// that order, or ownership of it.
				fr.Group(func(gr chi.Router) {
					gr.Use(middleware.RequireResourcePermission(resolver, logger, PermViewFuelOrder, ownedOrderContext))
					gr.Get("/{id}", fuelOrderHandler.GetOrder)
				})

				fr.Group(func(gr chi.Router) {
					gr.Use(middleware.RequireResourcePermission(resolver, logger, PermViewReceipts, ownedOrderContext))
					gr.Get("/{id}/receipt", fuelOrderHandler.GetReceipt)
				})

				fr.Group(func(gr chi.Router) {
					gr.Use(middleware.RequireResourcePermission(resolver, logger, PermManageFuelOrders, orderContext))
					gr.Patch("/{id}/start", fuelOrderHandler.StartOrder)
					gr.Patch("/{id}/complete", fuelOrderHandler.CompleteOrder)
					gr.Patch("/{id}/cancel", fuelOrderHandler.CancelOrder)
				})
			})
		}

		// Access control routes
		if accessHandler != nil {
			r.Route("/access", func(ar chi.Router) {
				ar.Group(func(gr chi.Router) {
					gr.Use(middleware.RequirePermission(resolver, logger, PermViewPermissions))
					gr.Post("/check", accessHandler.Check)
					gr.Get("/users/{id}/permissions", accessHandler.GetUserPermissions)
					gr.Get("/users/{id}/groups", accessHandler.GetUserGroups)
					gr.Get("/users/{id}/summary", accessHandler.GetUserSummary)
					gr.Get("/groups", accessHandler.GetGroups)
					gr.Get("/cache/stats", accessHandler.GetCacheStats)
				})

				ar.Group(func(gr chi.Router) {
					gr.Use(middleware.RequirePermission(resolver, logger, PermManagePermissions))
					gr.Post("/grants", accessHandler.GrantPermission)
					gr.Post("/grants/{id}/revoke", accessHandler.RevokeGrant)
					gr.Post("/grants/{id}/deactivate", accessHandler.DeactivateGrant)
					gr.Post("/grants/{id}/reactivate", accessHandler.ReactivateGrant)
					gr.Post("/users/{id}/groups", accessHandler.AddGroupMembership)
					gr.Delete("/users/{id}/groups/{groupID}", accessHandler.RemoveGroupMembership)
					gr.Post("/users/{id}/roles", accessHandler.AssignRole)
					gr.Delete("/users/{id}/roles/{roleID}", accessHandler.RemoveRole)
					gr.Post("/cache/invalidate", accessHandler.InvalidateCache)
				})
			})
		}
	})
}
