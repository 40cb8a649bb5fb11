package router

import (
	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/config"
	"github.com/editdesk/backend/internal/infrastructure/logger"
	"github.com/editdesk/backend/internal/interfaces/http/handler"
	"github.com/editdesk/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	Orders   *handler.OrderHandler
	Ledger   *handler.LedgerHandler
	Mappings *handler.MappingHandler
	Partner  *handler.PartnerHandler
	Activity *handler.ActivityHandler
	Reports  *handler.ReportHandler
	Outbox   *handler.OutboxHandler
	System   *handler.SystemHandler
}

// Options configure the engine's global middleware. An empty TraceService
// leaves requests untraced and a nil Meter unmeasured.
type Options struct {
	HTTP         config.HTTPConfig
	TraceService string
	Meter        metric.Meter
	Logger       *zap.Logger
}

// NewEngine builds the gin engine with the global middleware chain and all
// API routes under /api/v1
func NewEngine(opts Options, h Handlers) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(opts.Logger),
		middleware.Tracing(opts.TraceService),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(opts.Meter, opts.Logger),
		logger.GinMiddleware(opts.Logger),
		middleware.SecurityHeaders(opts.HTTP.HSTSMaxAge),
	)

	groups := Groups(opts.HTTP, h)
	Mount(engine, groups...)

	if opts.Logger != nil {
		for _, g := range groups {
			opts.Logger.Debug("route group mounted",
				zap.String("group", g.Name()),
				zap.Int("routes", len(g.Routes())),
			)
		}
	}
	return engine, nil
}

// Groups declares the route groups of the API
func Groups(httpCfg config.HTTPConfig, h Handlers) []*RouteGroup {
	bodyLimit := middleware.BodyLimit(httpCfg.MaxBodySize)
	partnerScoped := []gin.HandlerFunc{
		middleware.Identity(),
		middleware.RequirePartner(),
		middleware.TracingAttributeInjector(),
	}

	orders := NewRouteGroup("orders", "/orders").Use(partnerScoped...)
	orders.POST("", bodyLimit, h.Orders.Place).
		GET("", h.Orders.List).
		GET("/:id", h.Orders.Get).
		POST("/:id/accept", bodyLimit, h.Orders.Accept).
		POST("/:id/decline", bodyLimit, h.Orders.Decline).
		POST("/:id/complete", bodyLimit, h.Orders.MarkComplete).
		POST("/:id/revisions", bodyLimit, h.Orders.RequestRevision).
		POST("/:id/approve", bodyLimit, h.Orders.Approve).
		POST("/:id/deliverables", middleware.BodyLimit(httpCfg.MaxUploadSize), h.Orders.Upload).
		GET("/:id/deliverables/archive", h.Orders.Download).
		PATCH("/:id/deliverables/:deliverableId", bodyLimit, h.Orders.SetDeliverableVisibility).
		GET("/:id/activity", h.Activity.OrderActivity).
		GET("/:id/mapping-status", h.Mappings.Status).
		GET("/:id/ledger", h.Ledger.Get).
		POST("/:id/ledger/items", bodyLimit, h.Ledger.AddItem).
		PATCH("/:id/ledger/items/:itemId/quantity", bodyLimit, h.Ledger.UpdateQuantity).
		PATCH("/:id/ledger/items/:itemId/price", bodyLimit, h.Ledger.UpdatePrice).
		DELETE("/:id/ledger/items/:itemId", h.Ledger.RemoveItem).
		POST("/:id/invoice", h.Ledger.RaiseInvoice).
		PUT("/:id/invoice/status", bodyLimit, h.Ledger.SyncInvoiceStatus)

	partner := NewRouteGroup("partner", "/partner").Use(partnerScoped...)
	partner.GET("/settings", h.Partner.GetSettings).
		PUT("/settings", bodyLimit, h.Partner.UpdateSettings).
		GET("/customers/:customerId/revision-policy", h.Partner.GetRevisionPolicy).
		PUT("/customers/:customerId/revision-policy", bodyLimit, h.Partner.SetRevisionPolicy).
		DELETE("/customers/:customerId/revision-policy", h.Partner.DeleteRevisionPolicy)

	catalog := NewRouteGroup("catalog", "/catalog").Use(partnerScoped...)
	catalog.POST("/products", bodyLimit, h.Partner.CreateProduct).
		GET("/products", h.Partner.ListProducts).
		GET("/products/:productId", h.Partner.GetProduct).
		PUT("/products/:productId", bodyLimit, h.Partner.UpdateProduct).
		POST("/products/:productId/variations", bodyLimit, h.Partner.AddVariation)

	accounting := NewRouteGroup("accounting", "/accounting/mappings").Use(partnerScoped...)
	accounting.GET("", h.Mappings.List).
		PUT("/contacts/:customerId", bodyLimit, h.Mappings.SetContact).
		DELETE("/contacts/:customerId", h.Mappings.DeleteContact).
		PUT("/products/:productId", bodyLimit, h.Mappings.SetProduct).
		DELETE("/products/:productId", h.Mappings.DeleteProduct).
		POST("/validate", h.Mappings.Validate)

	reports := NewRouteGroup("reports", "/reports").Use(partnerScoped...)
	reports.GET("/orders", h.Reports.Summary).
		GET("/orders/export", h.Reports.Export)

	notifications := NewRouteGroup("notifications", "/notifications").
		Use(middleware.Identity(), middleware.TracingAttributeInjector())
	notifications.GET("", h.Activity.ListNotifications).
		POST("/read-all", h.Activity.MarkAllRead).
		POST("/:id/read", h.Activity.MarkRead).
		DELETE("/:id", h.Activity.DeleteNotification)

	system := NewRouteGroup("system", "/system")
	system.GET("/ping", h.System.Ping).
		GET("/info", h.System.GetSystemInfo).
		GET("/ready", h.System.Ready)

	outbox := system.Group("outbox", "/outbox").
		Use(middleware.Identity(), middleware.RequireRoles(shared.ActorRoleSystem), middleware.TracingAttributeInjector())
	outbox.GET("/dead", h.Outbox.DeadLetters).
		POST("/dead/retry-all", h.Outbox.RetryAll).
		GET("/stats", h.Outbox.Stats).
		GET("/:id", h.Outbox.Entry).
		POST("/:id/retry", h.Outbox.Retry)

	return []*RouteGroup{orders, partner, catalog, accounting, reports, notifications, system}
}
