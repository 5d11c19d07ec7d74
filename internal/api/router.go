package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "mailpanel/internal/api/context"
	"mailpanel/internal/api/handlers"
	"mailpanel/internal/api/middleware"
	"mailpanel/internal/platform/models"
)

// Named permissions gating the fine-grained routes. Hierarchy levels gate
// the coarse ones.
const (
	PermManageUsers  = "manage_users"
	PermManageGroups = "manage_groups"
	PermViewEmails   = "view_emails"
	PermSendEmails   = "send_emails"
)

type Dependencies struct {
	AuthHandler    *handlers.AuthHandler
	TenantHandler  *handlers.TenantHandler
	UserHandler    *handlers.UserHandler
	GroupHandler   *handlers.GroupHandler
	MailboxHandler *handlers.MailboxHandler
	HealthHandler  *handlers.HealthHandler

	AuthMiddleware   *middleware.AuthMiddleware
	AccessMiddleware *middleware.AccessMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	authMid := deps.AuthMiddleware
	accessMid := deps.AccessMiddleware

	router.GET("/healthz", wrap(deps.HealthHandler.Check))

	// Authentication
	router.POST("/api/v1/auth/login", wrap(deps.AuthHandler.Login))
	router.POST("/api/v1/auth/refresh", wrap(deps.AuthHandler.Refresh))
	router.POST("/api/v1/auth/logout", chain(deps.AuthHandler.Logout, authMid.Handle))
	router.GET("/api/v1/auth/me", chain(deps.AuthHandler.Me, authMid.Handle))

	// Tenant management, super admin only
	router.POST("/api/v1/tenants",
		chain(deps.TenantHandler.Create, authMid.Handle, accessMid.RequireLevel(models.LevelSuperAdmin)))
	router.GET("/api/v1/tenants",
		chain(deps.TenantHandler.List, authMid.Handle, accessMid.RequireLevel(models.LevelSuperAdmin)))
	router.PATCH("/api/v1/tenants/:tenant_id",
		chain(deps.TenantHandler.Update, authMid.Handle, accessMid.RequireLevel(models.LevelSuperAdmin)))
	router.DELETE("/api/v1/tenants/:tenant_id",
		chain(deps.TenantHandler.Deactivate, authMid.Handle, accessMid.RequireLevel(models.LevelSuperAdmin)))
	router.PATCH("/api/v1/tenants/:tenant_id/config",
		chain(deps.TenantHandler.UpdateConfig, authMid.Handle, accessMid.RequireLevel(models.LevelSuperAdmin)))

	// User management, tenant admin level and the manage_users grant
	router.POST("/api/v1/users",
		chain(deps.UserHandler.Create, authMid.Handle, accessMid.RequireLevel(models.LevelTenantAdmin)))
	router.GET("/api/v1/users",
		chain(deps.UserHandler.List, authMid.Handle, accessMid.RequireLevel(models.LevelTenantAdmin)))
	router.DELETE("/api/v1/users/:user_id",
		chain(deps.UserHandler.Deactivate, authMid.Handle, accessMid.RequireLevel(models.LevelTenantAdmin)))

	// Groups and grants
	router.POST("/api/v1/groups",
		chain(deps.GroupHandler.Create, authMid.Handle, accessMid.RequirePermission(PermManageGroups)))
	router.GET("/api/v1/groups",
		chain(deps.GroupHandler.List, authMid.Handle))
	router.POST("/api/v1/groups/:group_id/members",
		chain(deps.GroupHandler.AddMember, authMid.Handle, accessMid.RequirePermission(PermManageGroups)))
	router.DELETE("/api/v1/groups/:group_id/members/:user_id",
		chain(deps.GroupHandler.RemoveMember, authMid.Handle, accessMid.RequirePermission(PermManageGroups)))
	router.POST("/api/v1/groups/:group_id/permissions",
		chain(deps.GroupHandler.GrantPermission, authMid.Handle, accessMid.RequireLevel(models.LevelTenantAdmin)))
	router.DELETE("/api/v1/groups/:group_id/permissions/:permission",
		chain(deps.GroupHandler.RevokePermission, authMid.Handle, accessMid.RequireLevel(models.LevelTenantAdmin)))

	// Mailbox
	router.GET("/api/v1/mail",
		chain(deps.MailboxHandler.List, authMid.Handle))
	router.GET("/api/v1/mail/sent",
		chain(deps.MailboxHandler.Sent, authMid.Handle))
	router.PATCH("/api/v1/mail/:message_id/read",
		chain(deps.MailboxHandler.MarkRead, authMid.Handle))
	router.POST("/api/v1/mail/send",
		chain(deps.MailboxHandler.Send, authMid.Handle, accessMid.RequirePermission(PermSendEmails)))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
