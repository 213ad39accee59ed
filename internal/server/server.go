package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/digistore/internal/audit"
	auditdomain "github.com/smallbiznis/digistore/internal/audit/domain"
	"github.com/smallbiznis/digistore/internal/authorization"
	"github.com/smallbiznis/digistore/internal/bundle"
	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	"github.com/smallbiznis/digistore/internal/cache"
	"github.com/smallbiznis/digistore/internal/cart"
	"github.com/smallbiznis/digistore/internal/category"
	categorydomain "github.com/smallbiznis/digistore/internal/category/domain"
	"github.com/smallbiznis/digistore/internal/checkout"
	checkoutdomain "github.com/smallbiznis/digistore/internal/checkout/domain"
	"github.com/smallbiznis/digistore/internal/config"
	"github.com/smallbiznis/digistore/internal/download"
	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	"github.com/smallbiznis/digistore/internal/events"
	"github.com/smallbiznis/digistore/internal/newsletter"
	newsletterdomain "github.com/smallbiznis/digistore/internal/newsletter/domain"
	"github.com/smallbiznis/digistore/internal/observability"
	obsmiddleware "github.com/smallbiznis/digistore/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/digistore/internal/observability/metrics"
	obstracing "github.com/smallbiznis/digistore/internal/observability/tracing"
	"github.com/smallbiznis/digistore/internal/order"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	"github.com/smallbiznis/digistore/internal/payment"
	paymentdomain "github.com/smallbiznis/digistore/internal/payment/domain"
	"github.com/smallbiznis/digistore/internal/product"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/internal/providers"
	"github.com/smallbiznis/digistore/internal/ratelimit"
	"github.com/smallbiznis/digistore/internal/receipt"
	"github.com/smallbiznis/digistore/internal/settings"
	settingsdomain "github.com/smallbiznis/digistore/internal/settings/domain"
	"github.com/smallbiznis/digistore/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	cache.Module,
	storage.Module,
	events.Module,
	providers.Module,
	ratelimit.Module,
	authorization.Module,
	audit.Module,
	category.Module,
	product.Module,
	bundle.Module,
	download.Module,
	order.Module,
	receipt.Module,
	payment.Module,
	checkout.Module,
	cart.Module,
	settings.Module,
	newsletter.Module,
	fx.Provide(registerGin),
	fx.Provide(NewAdminKeys),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	categorySvc   categorydomain.Service
	productSvc    productdomain.Service
	bundleSvc     bundledomain.Service
	orderSvc      orderdomain.Service
	issuer        downloaddomain.Issuer
	gateway       downloaddomain.Gateway
	receipts      *receipt.Service
	paymentSvc    paymentdomain.Service
	checkoutSvc   checkoutdomain.Service
	cartSvc       *cart.Service
	settingsSvc   settingsdomain.Service
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	newsletterSvc newsletterdomain.Service
	adminKeys     *AdminKeys
	assets        storage.Store
	signer        *storage.URLSigner
	limiter       *ratelimit.StorefrontLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	CategorySvc   categorydomain.Service
	ProductSvc    productdomain.Service
	BundleSvc     bundledomain.Service
	OrderSvc      orderdomain.Service
	Issuer        downloaddomain.Issuer
	Gateway       downloaddomain.Gateway
	Receipts      *receipt.Service
	PaymentSvc    paymentdomain.Service
	CheckoutSvc   checkoutdomain.Service
	CartSvc       *cart.Service
	SettingsSvc   settingsdomain.Service
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	NewsletterSvc newsletterdomain.Service
	AdminKeys     *AdminKeys
	Assets        storage.Store
	Signer        *storage.URLSigner
	Limiter       *ratelimit.StorefrontLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http"),
		categorySvc:   p.CategorySvc,
		productSvc:    p.ProductSvc,
		bundleSvc:     p.BundleSvc,
		orderSvc:      p.OrderSvc,
		issuer:        p.Issuer,
		gateway:       p.Gateway,
		receipts:      p.Receipts,
		paymentSvc:    p.PaymentSvc,
		checkoutSvc:   p.CheckoutSvc,
		cartSvc:       p.CartSvc,
		settingsSvc:   p.SettingsSvc,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		newsletterSvc: p.NewsletterSvc,
		adminKeys:     p.AdminKeys,
		assets:        p.Assets,
		signer:        p.Signer,
		limiter:       p.Limiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerPublicRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	r := s.engine

	r.GET("/branding", s.GetBranding)

	catalog := r.Group("/catalog")
	{
		catalog.GET("/products", s.ListCatalogProducts)
		catalog.GET("/products/featured", s.ListFeaturedProducts)
		catalog.GET("/products/types", s.ListProductTypes)
		catalog.GET("/products/:slug", s.GetCatalogProduct)
		catalog.GET("/categories", s.ListCatalogCategories)
		catalog.GET("/categories/top", s.ListTopCategories)
		catalog.GET("/categories/:slug", s.GetCatalogCategory)
		catalog.GET("/bundles", s.ListCatalogBundles)
		catalog.GET("/bundles/:slug", s.GetCatalogBundle)
	}

	r.POST("/checkout", s.CheckoutRateLimit(), s.CreateCheckout)
	r.GET("/checkout/success", s.CheckoutSuccess)

	r.POST("/webhook", s.HandleStripeWebhook)
	r.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)

	r.GET("/download/:token", s.DownloadRateLimit(), s.Download)
	r.GET("/download/:token/info", s.DownloadInfo)

	r.POST("/newsletter", s.NewsletterRateLimit(), s.SubscribeNewsletter)

	carts := r.Group("/cart/:cartId")
	{
		carts.GET("", s.GetCart)
		carts.DELETE("", s.ClearCart)
		carts.POST("/items", s.AddCartItem)
		carts.PATCH("/items", s.UpdateCartItem)
		carts.DELETE("/items/:type/:id", s.RemoveCartItem)
		carts.POST("/checkout", s.CheckoutRateLimit(), s.CheckoutCart)
	}

	r.GET("/assets/:name", s.GetAsset)
	r.PUT("/assets/upload/:name", s.UploadAsset)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminRequired())

	// -------- Categories --------
	admin.GET("/categories", s.authorize(authorization.ObjectCategory, authorization.ActionCategoryView), s.AdminListCategories)
	admin.POST("/categories", s.authorize(authorization.ObjectCategory, authorization.ActionCategoryCreate), s.AdminCreateCategory)
	admin.GET("/categories/:id", s.authorize(authorization.ObjectCategory, authorization.ActionCategoryView), s.AdminGetCategory)
	admin.PATCH("/categories/:id", s.authorize(authorization.ObjectCategory, authorization.ActionCategoryUpdate), s.AdminUpdateCategory)
	admin.DELETE("/categories/:id", s.authorize(authorization.ObjectCategory, authorization.ActionCategoryDelete), s.AdminDeleteCategory)

	// -------- Products --------
	admin.GET("/products", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.AdminListProducts)
	admin.POST("/products", s.authorize(authorization.ObjectProduct, authorization.ActionProductCreate), s.AdminCreateProduct)
	admin.GET("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.AdminGetProduct)
	admin.PATCH("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductUpdate), s.AdminUpdateProduct)
	admin.DELETE("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductDelete), s.AdminDeleteProduct)

	// -------- Bundles --------
	admin.GET("/bundles", s.authorize(authorization.ObjectBundle, authorization.ActionBundleView), s.AdminListBundles)
	admin.POST("/bundles", s.authorize(authorization.ObjectBundle, authorization.ActionBundleCreate), s.AdminCreateBundle)
	admin.GET("/bundles/:id", s.authorize(authorization.ObjectBundle, authorization.ActionBundleView), s.AdminGetBundle)
	admin.PATCH("/bundles/:id", s.authorize(authorization.ObjectBundle, authorization.ActionBundleUpdate), s.AdminUpdateBundle)
	admin.DELETE("/bundles/:id", s.authorize(authorization.ObjectBundle, authorization.ActionBundleDelete), s.AdminDeleteBundle)

	// -------- Assets --------
	admin.POST("/assets/upload-url", s.authorize(authorization.ObjectAsset, authorization.ActionAssetUpload), s.AdminCreateUploadURL)

	// -------- Orders --------
	admin.GET("/orders", s.authorize(authorization.ObjectOrder, authorization.ActionOrderView), s.AdminListOrders)
	admin.GET("/customers/orders", s.authorize(authorization.ObjectOrder, authorization.ActionOrderView), s.AdminListCustomerOrders)
	admin.GET("/orders/:id", s.authorize(authorization.ObjectOrder, authorization.ActionOrderView), s.AdminGetOrder)
	admin.PATCH("/orders/:id/status", s.authorize(authorization.ObjectOrder, authorization.ActionOrderUpdateStatus), s.AdminUpdateOrderStatus)
	admin.GET("/orders/:id/receipt.pdf", s.authorize(authorization.ObjectReceipt, authorization.ActionReceiptView), s.AdminReceiptPDF)
	admin.POST("/orders/:id/receipt/resend", s.authorize(authorization.ObjectReceipt, authorization.ActionReceiptResend), s.AdminResendReceipt)
	admin.GET("/orders/:id/tokens", s.authorize(authorization.ObjectDownloadToken, authorization.ActionDownloadTokenView), s.AdminListTokens)
	admin.POST("/orders/:id/tokens/:productId/regenerate", s.authorize(authorization.ObjectDownloadToken, authorization.ActionDownloadTokenRegenerate), s.AdminRegenerateToken)

	// -------- Settings --------
	admin.GET("/settings", s.authorize(authorization.ObjectSetting, authorization.ActionSettingView), s.AdminListSettings)
	admin.GET("/settings/:key", s.authorize(authorization.ObjectSetting, authorization.ActionSettingView), s.AdminGetSetting)
	admin.PUT("/settings/:key", s.authorize(authorization.ObjectSetting, authorization.ActionSettingUpdate), s.AdminSetSetting)
	admin.GET("/branding", s.authorize(authorization.ObjectSetting, authorization.ActionSettingView), s.GetBranding)
	admin.PATCH("/branding", s.authorize(authorization.ObjectSetting, authorization.ActionSettingUpdate), s.AdminUpdateBranding)

	// -------- Audit --------
	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
