package httpserver

import (
	"net/http"

	"contractdesk/internal/auth"
	"contractdesk/internal/httpserver/handlers"
	"contractdesk/internal/logger"
	"contractdesk/internal/rbac"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// crossOrigin opens the plugin and public approval endpoints to browser
// callers on other origins.
func crossOrigin(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})
}

func NewRouter(d *handlers.Deps, authn *auth.Authenticator) http.Handler {
	need := auth.RequirePermission
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.Middleware(d.Log), middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/v1/auth/register", handlers.Register(d))
	r.Post("/v1/auth/login", handlers.Login(d))

	r.Route("/v1/approvals/{token}", func(pub chi.Router) {
		pub.Use(crossOrigin(d.Config.CORSAllowedOrigins))
		pub.Get("/", handlers.ViewApproval(d))
		pub.Post("/", handlers.RedeemApproval(d))
	})

	r.Route("/v1/figma", func(fg chi.Router) {
		fg.Use(crossOrigin(d.Config.CORSAllowedOrigins))
		fg.Use(authn.Middleware, need(rbac.FigmaExport))
		fg.Post("/contracts", handlers.FigmaCreateContract(d))
	})

	r.Group(func(protected chi.Router) {
		protected.Use(authn.Middleware)
		protected.Get("/v1/me", handlers.Me(d))
		protected.Post("/v1/auth/logout", handlers.Logout(d))
		protected.Post("/v1/auth/password", handlers.ChangePassword(d))
		protected.Get("/v1/logs", handlers.ListLogs(d))

		protected.Route("/v1/contracts", func(c chi.Router) {
			c.With(need(rbac.ContractsRead)).Get("/", handlers.ListContracts(d))
			c.With(need(rbac.ContractsCreate)).Post("/", handlers.CreateContract(d))
			c.With(need(rbac.ContractsExport)).Get("/export.xlsx", handlers.ExportContracts(d))
			c.Route("/{id}", func(one chi.Router) {
				one.With(need(rbac.ContractsRead)).Get("/", handlers.GetContract(d))
				one.With(need(rbac.ContractsUpdate)).Patch("/", handlers.UpdateContract(d))
				one.With(need(rbac.ContractsDelete)).Delete("/", handlers.DeleteContract(d))
				one.With(need(rbac.ContractsUpdate)).Post("/submit", handlers.SubmitContract(d))
				one.With(need(rbac.ContractsApprove)).Post("/approve", handlers.ApproveContract(d))
				one.With(need(rbac.ContractsApprove)).Post("/reject", handlers.RejectContract(d))
				one.With(need(rbac.ContractsRead)).Get("/layout", handlers.ContractLayout(d))
				one.With(need(rbac.ContractsRead)).Get("/html", handlers.ContractHTML(d))
				one.With(need(rbac.ContractsExport)).Post("/pdf", handlers.GeneratePDF(d))
				one.With(need(rbac.ContractsExport)).Get("/pdf", handlers.DownloadPDF(d))
				one.With(need(rbac.ContractsUpdate)).Post("/approval-tokens", handlers.IssueApprovalToken(d))
			})
		})

		protected.Route("/v1/templates", func(t chi.Router) {
			t.With(need(rbac.TemplatesRead)).Get("/", handlers.ListTemplates(d))
			t.With(need(rbac.TemplatesCreate)).Post("/", handlers.CreateTemplate(d))
			t.With(need(rbac.TemplatesRead)).Get("/{id}", handlers.GetTemplate(d))
			t.With(need(rbac.TemplatesUpdate)).Patch("/{id}", handlers.UpdateTemplate(d))
			t.With(need(rbac.TemplatesUpdate)).Delete("/{id}", handlers.DeleteTemplate(d))
			t.With(need(rbac.TemplatesSubmit)).Post("/{id}/submit", handlers.SubmitTemplate(d))
		})

		protected.Route("/v1/notifications", func(n chi.Router) {
			n.Use(need(rbac.NotificationsRead))
			n.Get("/", handlers.ListNotifications(d))
			n.Get("/unread-count", handlers.UnreadCount(d))
			n.Post("/read-all", handlers.MarkAllNotificationsRead(d))
			n.Post("/{id}/read", handlers.MarkNotificationRead(d))
		})

		protected.Route("/v1/admin", func(admin chi.Router) {
			admin.Group(func(users chi.Router) {
				users.Use(need(rbac.UsersManage))
				users.Get("/users", handlers.ListUsers(d))
				users.Post("/users", handlers.CreateUser(d))
				users.Patch("/users/{id}", handlers.UpdateUser(d))
				users.Delete("/users/{id}", handlers.DeleteUser(d))
				users.Put("/users/{id}/role", handlers.AssignRole(d))
			})
			admin.With(need(rbac.RolesManage)).Get("/roles", handlers.ListRoles(d))
			admin.Group(func(review chi.Router) {
				review.Use(need(rbac.TemplatesApprove))
				review.Get("/templates/pending", handlers.TemplateReviewQueue(d))
				review.Post("/templates/{id}/approve", handlers.ApproveTemplate(d))
				review.Post("/templates/{id}/reject", handlers.RejectTemplate(d))
			})
			admin.Group(func(notes chi.Router) {
				notes.Use(need(rbac.NotificationsAdm))
				notes.Post("/notifications", handlers.CreateNotification(d))
				notes.Delete("/notifications/{id}", handlers.DeleteNotification(d))
				notes.Get("/notifications/{id}/receipts", handlers.NotificationReceipts(d))
				notes.Get("/notification-templates", handlers.ListNotificationTemplates(d))
				notes.Put("/notification-templates/{key}", handlers.PutNotificationTemplate(d))
			})
		})
	})
	return r
}
